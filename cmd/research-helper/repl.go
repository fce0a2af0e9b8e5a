package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mikeboe/research-chat/pkg/chat"
	"github.com/mikeboe/research-chat/pkg/export"
	"github.com/mikeboe/research-chat/pkg/prompt"
	"github.com/mikeboe/research-chat/pkg/render"
	"github.com/mikeboe/research-chat/pkg/server"
)

const helpText = `Commands:
  /papers              list generated papers
  /bookmark N          bookmark paper N
  /bookmarks           list bookmarks
  /graph               show the knowledge graph
  /search QUERY        full-text search over generated papers
  /export N FILE       save message N as a Word document
  /quick N             start quick-start topic N
  /reset               clear the chat, papers and graph
  /help                show this help
  /quit                exit`

type repl struct {
	svc    *chat.Service
	papers server.PaperSearcher
	id     uuid.UUID
	opts   prompt.Options
	out    io.Writer
	styles render.Styles
	md     *render.Markdown
}

func newREPL(ctx context.Context, svc *chat.Service, papers server.PaperSearcher, opts prompt.Options, out io.Writer, md *render.Markdown) (*repl, error) {
	store, err := svc.Create(ctx)
	if err != nil {
		return nil, err
	}
	return &repl{
		svc:    svc,
		papers: papers,
		id:     store.ID,
		opts:   opts,
		out:    out,
		styles: render.NewStyles(),
		md:     md,
	}, nil
}

type terminalSink struct {
	out    io.Writer
	styles render.Styles
}

func (s terminalSink) Notice(msg string) {
	fmt.Fprintln(s.out, s.styles.Notice.Render(msg))
}

func (s terminalSink) Content(string) {}

func (s terminalSink) Complete() {
	fmt.Fprintln(s.out, s.styles.Success.Render("Research Complete!"))
}

func (s terminalSink) Fail(err error) {
	fmt.Fprintln(s.out, s.styles.Error.Render("An error occurred: "+err.Error()))
}

func (r *repl) loop(ctx context.Context, in *bufio.Reader) error {
	fmt.Fprintln(r.out, r.styles.Title.Render("AI Research Assistant"))
	fmt.Fprintln(r.out, "Hello! I'm your AI Research Assistant. I can search arXiv, read papers, and write new research papers for you. What would you like to research today?")
	fmt.Fprintln(r.out, r.styles.Muted.Render(r.quickStartHint()))

	for {
		fmt.Fprint(r.out, r.styles.Prompt.Render("> "))
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		quit, herr := r.handle(ctx, strings.TrimSpace(line))
		if herr != nil && !errors.Is(herr, errAgent) {
			fmt.Fprintln(r.out, r.styles.Error.Render(herr.Error()))
		}
		if quit || errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) quickStartHint() string {
	var b strings.Builder
	b.WriteString("Quick start:")
	for i, t := range prompt.QuickStartTopics {
		fmt.Fprintf(&b, " [%d] %s", i+1, t)
	}
	b.WriteString("  (/quick N, /help)")
	return b.String()
}

// errAgent marks failures already reported through the sink.
var errAgent = errors.New("agent run failed")

// handle runs one line of input. It reports whether the user asked to quit.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, r.ask(ctx, line)
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/reset":
		if _, err := r.svc.Reset(ctx, r.id); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, r.styles.Success.Render("Session reset. Bookmarks were kept."))
	case "/papers":
		store, err := r.svc.Snapshot(ctx, r.id)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, render.Papers(r.styles, store.Papers))
	case "/bookmarks":
		store, err := r.svc.Snapshot(ctx, r.id)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, render.Bookmarks(r.styles, store.Bookmarks))
	case "/graph":
		store, err := r.svc.Snapshot(ctx, r.id)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, render.Graph(r.styles, store.Graph))
	case "/bookmark":
		n, err := number(args)
		if err != nil {
			return false, err
		}
		bm, err := r.svc.Bookmark(ctx, r.id, n-1)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, r.styles.Success.Render("Bookmarked: "+bm.Title))
	case "/search":
		return false, r.search(ctx, strings.Join(args, " "))
	case "/export":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: /export N FILE")
		}
		n, err := number(args[:1])
		if err != nil {
			return false, err
		}
		return false, r.export(ctx, n-1, args[1])
	case "/quick":
		n, err := number(args)
		if err != nil {
			return false, err
		}
		if n > len(prompt.QuickStartTopics) {
			return false, fmt.Errorf("no quick-start topic %d", n)
		}
		return false, r.ask(ctx, prompt.QuickStartRequest(prompt.QuickStartTopics[n-1]))
	default:
		return false, fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return false, nil
}

func number(args []string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number %q", args[0])
	}
	return n, nil
}

func (r *repl) ask(ctx context.Context, input string) error {
	turn, err := r.svc.SendMessage(ctx, r.id, input, r.opts, terminalSink{out: r.out, styles: r.styles})
	if err != nil && turn == nil {
		return err
	}

	if turn.Reply.Content != "" {
		fmt.Fprintln(r.out, r.md.Render(turn.Reply.Content))
	}
	if turn.Reply.AudioPath != "" {
		fmt.Fprintln(r.out, r.styles.Muted.Render("Audio summary: "+turn.Reply.AudioPath))
	}
	if err != nil {
		return errAgent
	}
	if latest, ok := turn.Store.LastPaper(); ok && len(turn.NewPapers) > 0 {
		fmt.Fprintln(r.out, r.styles.Success.Render("New Research Paper Ready! "+latest.Path))
	}
	if len(turn.FollowUps) > 0 {
		fmt.Fprintln(r.out, r.styles.Title.Render("Suggested Next Steps"))
		for _, f := range turn.FollowUps {
			fmt.Fprintln(r.out, "  - "+f.Message)
		}
	}
	return nil
}

func (r *repl) search(ctx context.Context, query string) error {
	if r.papers == nil {
		return fmt.Errorf("paper search is not available")
	}
	hits, err := r.papers.Search(ctx, r.id, query, 10)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(r.out, r.styles.Muted.Render("No matching papers."))
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(r.out, "- %s  %s\n", h.Topic, r.styles.Muted.Render(h.Path))
	}
	return nil
}

func (r *repl) export(ctx context.Context, index int, path string) error {
	store, err := r.svc.Snapshot(ctx, r.id)
	if err != nil {
		return err
	}
	if index >= len(store.Messages) || !export.DocxEligible(store.Messages[index]) {
		return export.ErrNotExportable
	}
	data, err := export.Docx(store.Messages[index].Content)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(r.out, r.styles.Success.Render("Saved "+path))
	return nil
}
