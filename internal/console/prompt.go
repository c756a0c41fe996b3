package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MacJediWizard/backupctl/internal/backupform"
)

// Prompter fills a Page interactively and submits it.
type Prompter struct {
	page *Page
	in   *bufio.Reader
	out  io.Writer
}

// NewPrompter creates a Prompter reading answers from in and writing
// prompts to out.
func NewPrompter(page *Page, in io.Reader, out io.Writer) *Prompter {
	return &Prompter{page: page, in: bufio.NewReader(in), out: out}
}

// Run asks for the form fields and submits the page. When the form rejects
// the input, the focused field is asked again. Run returns the result of the
// first submission that reached the server, or io.EOF if the input ends
// before the form could be sent.
func (p *Prompter) Run(ctx context.Context) error {
	sources, err := p.readSources()
	if err != nil {
		return err
	}
	destination, err := p.readLine("Destination (optional): ")
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	upload, err := p.readUpload()
	if err != nil {
		return err
	}
	p.page.SetValues(sources, destination, upload)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.page.Submit(ctx)
		if !backupform.IsValidation(err) {
			return err
		}

		if p.page.Focused() != backupform.SourcesID {
			return err
		}
		sources, rerr := p.readSources()
		if rerr != nil {
			return rerr
		}
		p.page.Sources().Set(sources)
	}
}

// readSources reads source lines until a blank line. Lines are joined with
// newlines so the form splits them like a multi-line text area.
func (p *Prompter) readSources() (string, error) {
	fmt.Fprintln(p.out, "Sources (separate with ; or one per line, blank line to finish):")

	var lines []string
	for {
		line, err := p.in.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		blank := strings.TrimSpace(line) == ""
		if !blank {
			lines = append(lines, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(lines) > 0 {
				return strings.Join(lines, "\n"), nil
			}
			return "", err
		}
		if blank {
			return strings.Join(lines, "\n"), nil
		}
	}
}

func (p *Prompter) readLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

// readUpload asks until the answer is one ParseUploadAnswer accepts.
func (p *Prompter) readUpload() (string, error) {
	for {
		answer, err := p.readLine("Upload to drive? [default/yes/no]: ")
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if value, ok := ParseUploadAnswer(answer); ok {
			return value, nil
		}
		if err != nil {
			return "", err
		}
		fmt.Fprintf(p.out, "Unrecognised answer %q, use yes, no or leave blank.\n", strings.TrimSpace(answer))
	}
}

// ParseUploadAnswer maps an operator's answer to the upload selector's
// values. Blank and "default" leave the choice to the server. It reports
// false for anything it does not recognise.
func ParseUploadAnswer(answer string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "default":
		return backupform.UploadUnset, true
	case "y", "yes", "true":
		return backupform.UploadYes, true
	case "n", "no", "false":
		return backupform.UploadNo, true
	}
	return backupform.UploadUnset, false
}
