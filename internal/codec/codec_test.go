package codec

import (
	"errors"
	"testing"
	"time"

	"chronicle/pkg/domain"
)

func fixtureSnapshot(t *testing.T) domain.Snapshot {
	t.Helper()
	inventory := domain.NewContainer(map[string]domain.Value{
		"gold":   domain.IntValue(250),
		"scroll": domain.StringValue("Scroll of Doom"),
	})
	c := domain.NewContainer(nil)
	if err := c.SetReadonly("id", domain.StringValue("doc-1")); err != nil {
		t.Fatalf("SetReadonly: %v", err)
	}
	attrs := map[string]domain.Value{
		"title":     domain.StringValue("My Document"),
		"revision":  domain.IntValue(3),
		"score":     domain.FloatValue(0.75),
		"published": domain.BoolValue(true),
		"tags":      domain.ListValue(domain.StringValue("a"), domain.StringValue("b")),
		"meta":      domain.MapValue(map[string]domain.Value{"lang": domain.StringValue("en")}),
		"inventory": domain.ContainerValue(inventory),
	}
	if err := c.SetMany(attrs); err != nil {
		t.Fatalf("SetMany: %v", err)
	}
	snap, err := c.Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	return snap
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	snap := fixtureSnapshot(t)
	label := domain.Label{Seq: 7, At: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC), Description: "save point"}

	payload, err := Encode(snap, label)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, decodedLabel, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !decoded.Equal(snap) {
		t.Fatalf("decoded snapshot differs from source")
	}
	if decodedLabel.Seq != label.Seq || !decodedLabel.At.Equal(label.At) || decodedLabel.Description != label.Description {
		t.Fatalf("decoded label %+v, want %+v", decodedLabel, label)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	snap := fixtureSnapshot(t)
	label := domain.Label{Seq: 1, At: time.Unix(0, 0).UTC()}
	a, err := Encode(snap, label)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Encode(snap, label)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("two encodings of the same snapshot differ")
	}
}

func TestNilNestedContainerRoundTrips(t *testing.T) {
	c := domain.NewContainer(map[string]domain.Value{
		"slot":  domain.ContainerValue(nil),
		"empty": domain.ContainerValue(domain.NewContainer(nil)),
	})
	snap, err := c.Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	payload, err := Encode(snap, domain.Label{Seq: 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, _, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !decoded.Equal(snap) {
		t.Fatalf("nil nested container did not survive the round trip")
	}

	entries, err := decoded.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	for _, entry := range entries {
		nested, ok := entry.Value.AsContainer()
		if !ok {
			t.Fatalf("attribute %q lost its container kind", entry.Name)
		}
		switch entry.Name {
		case "slot":
			if nested != nil {
				t.Fatalf("nil container decoded as non-nil")
			}
		case "empty":
			if nested == nil {
				t.Fatalf("empty container decoded as nil")
			}
		}
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	if _, _, err := Decode([]byte("NOPE....")); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	snap := fixtureSnapshot(t)
	payload, err := Encode(snap, domain.Label{Seq: 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	payload[4] = 99
	if _, _, err := Decode(payload); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	snap := fixtureSnapshot(t)
	payload, err := Encode(snap, domain.Label{Seq: 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, cut := range []int{5, len(payload) / 2, len(payload) - 1} {
		if _, _, err := Decode(payload[:cut]); !errors.Is(err, domain.ErrDecode) {
			t.Fatalf("truncation at %d: expected ErrDecode, got %v", cut, err)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	snap := fixtureSnapshot(t)
	payload, err := Encode(snap, domain.Label{Seq: 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	payload = append(payload, 0xFF)
	if _, _, err := Decode(payload); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode for trailing bytes, got %v", err)
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	c := domain.NewContainer(map[string]domain.Value{"x": domain.IntValue(1)})
	snap, err := c.Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	payload, err := Encode(snap, domain.Label{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// The final value in the payload is the int tag for attribute "x".
	payload[len(payload)-2] = 0x7F
	if _, _, err := Decode(payload); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode for unknown tag, got %v", err)
	}
}
