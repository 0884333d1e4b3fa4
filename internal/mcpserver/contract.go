package mcpserver

// NoteFormatContract describes the Markdown note format that LLM consumers
// should follow when writing notes.
const NoteFormatContract = `# Note Format Contract

A note is a UTF-8 Markdown file whose path ends with ` + "`" + `.md` + "`" + `.

## Structure

` + "```" + `markdown
---
created: 2025-01-20T09:00:00Z   # OPTIONAL - set on first write when absent
modified: 2025-01-20T09:30:00Z  # OPTIONAL - bumped on every write
aliases:                        # OPTIONAL - extra search terms
  - standup
pinned: true                    # OPTIONAL
favorited: false                # OPTIONAL
icon: "🗓"                      # OPTIONAL
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **Front matter is optional.** When present, the ` + "`" + `---` + "`" + ` fences must be the
   first thing in the file. The keys above are reserved; any other key is kept verbatim.
2. **Title** is the file name without ` + "`" + `.md` + "`" + `. Name files the way they should appear.
3. **Mentions** link notes together and feed backlinks and the graph:
   - ` + "`" + `[[other-note]]` + "`" + ` resolves relative to the current note's folder; ` + "`" + `.md` + "`" + ` is implied.
   - ` + "`" + `[[/folder/note]]` + "`" + ` resolves from the notebook root.
   - ` + "`" + `[[note#heading|shown text]]` + "`" + ` targets a heading and sets display text.
   - ` + "`" + `#topic` + "`" + ` at the start of a word mentions ` + "`" + `topic.md` + "`" + `.
   - ` + "`" + `[label](other.md)` + "`" + ` mentions a local note; network URLs are ignored.
4. **File paths** use forward slashes and never leave the notebook root.
5. **Mention targets need not exist.** A mention of a missing note is still recorded.

## Example

` + "```" + `markdown
---
aliases:
  - standup
---

# Weekly standup 2025-01-20

Attendees: Alice, Bob. #meetings

- [[people/alice]] to review the [[design-doc#risks|risk section]]
- Bob to update [the roadmap](project-x/roadmap.md)
` + "```" + `
`
