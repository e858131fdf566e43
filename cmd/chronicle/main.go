// Command chronicle wires a container and a history manager together and
// walks through an edit/undo/redo/save/load session, printing the history
// log. It is a demonstration harness around the library, not part of it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"chronicle/internal/archive"
	"chronicle/internal/blob"
	"chronicle/internal/core"
	"chronicle/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chronicle", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dir      = fs.String("dir", "./snapshots", "directory for snapshot files")
		saveName = fs.String("save-as", "demo-session", "name to save the final state under")
		fromEnv  = fs.Bool("env", false, "select the archive backend from CHRONICLE_* environment variables")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := run(context.Background(), stdout, *dir, *saveName, *fromEnv); err != nil {
		fmt.Fprintf(stderr, "chronicle: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, stdout io.Writer, dir, saveName string, fromEnv bool) error {
	store, err := openArchive(ctx, dir, fromEnv)
	if err != nil {
		return err
	}

	doc := domain.NewContainer(map[string]domain.Value{
		"title":   domain.StringValue("My Document"),
		"content": domain.StringValue("Hello World!"),
	})
	history, err := core.NewHistory(doc, core.WithArchive(store))
	if err != nil {
		return err
	}
	metrics := core.NewExpvarMetricsRecorder("")
	audit := &core.MemoryAuditLog{}
	svc := core.NewService(history, core.WithMetricsRecorder(metrics), core.WithAuditLogger(audit))

	fmt.Fprintf(stdout, "start:      %s\n", doc)

	if _, err := svc.Checkpoint(ctx, "before edit"); err != nil {
		return err
	}
	if err := doc.Set("content", domain.StringValue("Hello OpenAI!")); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "edited:     %s\n", doc)

	if err := svc.Undo(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "after undo: %s\n", doc)

	if err := svc.Redo(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "after redo: %s\n", doc)

	ref, err := svc.Save(ctx, saveName)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "saved:      %s\n", ref)

	if err := svc.Load(ctx, ref); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "loaded:     %s\n", doc)

	fmt.Fprintln(stdout, "history:")
	for _, entry := range svc.Log(ctx) {
		marker := " "
		if entry.Current {
			marker = "*"
		}
		fmt.Fprintf(stdout, "  %s #%d %s %s\n", marker, entry.Label.Seq,
			entry.Label.At.Format("15:04:05.000"), entry.Label.Description)
	}
	return nil
}

func openArchive(ctx context.Context, dir string, fromEnv bool) (core.Archive, error) {
	if fromEnv {
		return archive.Open(ctx)
	}
	store, err := blob.NewFilesystem(dir)
	if err != nil {
		return nil, err
	}
	return archive.NewBlob(store), nil
}
