package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MarkdownStore writes one markdown file per interview under Dir, named
// interview_<subject>_<timestamp>.md.
type MarkdownStore struct {
	Dir string
}

var _ Store = (*MarkdownStore)(nil)

func NewMarkdownStore(dir string) *MarkdownStore {
	return &MarkdownStore{Dir: dir}
}

func (m *MarkdownStore) Save(_ context.Context, rec Record) (string, error) {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create archive dir %s", m.Dir)
	}
	name := fmt.Sprintf("interview_%s_%s.md", SafeName(rec.Subject), rec.CreatedAt.Format("20060102_150405"))
	path := filepath.Join(m.Dir, name)
	if err := os.WriteFile(path, []byte(renderMarkdown(rec)), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	log.Info().Str("component", "archive").Str("file", name).Msg("interview saved")
	return name, nil
}

func renderMarkdown(rec Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rec.Title)
	fmt.Fprintf(&b, "- Date: %s\n", rec.CreatedAt.Format("2006-01-02T15:04:05"))
	subject := rec.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "Unknown"
	}
	fmt.Fprintf(&b, "- Driver: %s\n\n", subject)
	b.WriteString("## Recap\n\n")
	b.WriteString(rec.Recap)
	b.WriteString("\n\n## Interview\n\n")
	for i, turn := range rec.Turns {
		fmt.Fprintf(&b, "%d. **Q:** %s\n", i+1, strings.TrimSpace(turn.Question))
		fmt.Fprintf(&b, "   \n   **A:** %s\n\n", strings.TrimSpace(turn.Answer))
	}
	return b.String()
}
