package assembler

import (
	"fmt"
	"strings"

	"github.com/ibeckermayer/reply4me/internal/thread"
	"github.com/ibeckermayer/reply4me/internal/types"
)

// compose renders the prompt in a fixed section order: author header,
// recent-interaction digest, conversation thread, image descriptions, then the
// literal target post text. Empty sections are omitted entirely; the target
// section is always present.
func (b *Builder) compose(post *types.Post, author *types.Author, entries []thread.Entry, recent []types.Interaction, descs []string) string {
	var sb strings.Builder

	sb.WriteString("## Author\n")
	fmt.Fprintf(&sb, "You are replying to @%s (%s).\n", author.Handle, author.Name)
	if author.Prompt != "" {
		sb.WriteString(author.Prompt)
		sb.WriteString("\n")
	}

	if len(recent) > 0 {
		fmt.Fprintf(&sb, "\n## Recent interactions with @%s\n", author.Handle)
		for _, in := range recent {
			fmt.Fprintf(&sb, "They posted: %s\n", in.PostText)
			fmt.Fprintf(&sb, "You replied: %s\n", in.Response)
		}
	}

	if len(entries) > 0 {
		sb.WriteString("\n## Conversation\n")
		for _, e := range entries {
			if e.IsSeparator() {
				sb.WriteString(e.SeparatorText())
				sb.WriteString("\n")
				continue
			}
			fmt.Fprintf(&sb, "%s: %s\n", b.speaker(e.Post, author), e.Post.Text)
		}
	}

	if len(descs) > 0 {
		sb.WriteString("\n## Images in the target post\n")
		for _, d := range descs {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
	}

	sb.WriteString("\n## Target post\n")
	sb.WriteString(post.Text)
	sb.WriteString("\n")

	return sb.String()
}

// speaker labels a thread post as the operating account, the target author or
// an uninvolved third party.
func (b *Builder) speaker(p *types.Post, author *types.Author) string {
	switch p.AuthorID {
	case b.cfg.AccountID:
		return "@" + b.cfg.AccountHandle + " (you)"
	case author.ID:
		return "@" + author.Handle
	default:
		return "other"
	}
}
