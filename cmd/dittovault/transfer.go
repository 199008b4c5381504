package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/marmos91/dittovault/pkg/client"
)

type clientFlags struct {
	server      string
	repo        string
	concurrency int
}

func (f *clientFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&f.server, "server", envOr("DITTOVAULT_SERVER", "http://localhost:8080"), "Vault server URL")
	fs.StringVar(&f.repo, "repo", os.Getenv("DITTOVAULT_REPO"), "Repository id")
	fs.IntVar(&f.concurrency, "concurrency", 4, "Parallel chunk uploads")
}

func (f *clientFlags) client() (*client.Client, error) {
	if f.repo == "" {
		return nil, fmt.Errorf("--repo is required")
	}
	return client.New(client.Config{BaseURL: f.server, Concurrency: f.concurrency})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runPush(args []string) error {
	fs := newFlagSet("push", "[flags] LOCAL REMOTE")
	var cf clientFlags
	cf.add(fs)
	author := fs.String("author", os.Getenv("USER"), "Author id recorded on the version")
	message := fs.StringP("message", "m", "", "Version message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("push takes a local file and a remote path")
	}

	c, err := cf.client()
	if err != nil {
		return err
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := c.Push(ctx, client.PushRequest{
		RepositoryID: cf.repo,
		Path:         fs.Arg(1),
		Content:      f,
		AuthorID:     *author,
		Message:      *message,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s: version %d (%s)\n", fs.Arg(1), res.Version.Sequence, res.Version.ID)
	fmt.Printf("  %d bytes in %d chunks, %d uploaded (%d bytes)\n",
		res.Version.Size, res.Chunks, res.Uploaded, res.UploadedBytes)
	return nil
}

func runPull(args []string) error {
	fs := newFlagSet("pull", "[flags] REMOTE [LOCAL]")
	var cf clientFlags
	cf.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return fmt.Errorf("pull takes a remote path and an optional local file")
	}

	c, err := cf.client()
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if fs.NArg() == 2 && fs.Arg(1) != "-" {
		f, err := os.Create(fs.Arg(1))
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := c.PullPath(ctx, cf.repo, fs.Arg(0), w)
	if err != nil {
		return err
	}
	if w != os.Stdout {
		fmt.Printf("%s: %d bytes\n", fs.Arg(0), n)
	}
	return nil
}
