package textdiff

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
)

const htmlDiffHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
table.diff { border-collapse: collapse; font-family: monospace; width: 100%%; }
table.diff td { border: 1px solid #ccc; padding: 2px 6px; vertical-align: top; white-space: pre-wrap; width: 50%%; }
td.del { background-color: #ffd7d5; }
td.add { background-color: #d4f8d4; }
td.chg { background-color: #fff3c2; }
</style>
<title>%s</title>
</head>
<body>
<h3>%s</h3>
<table class="diff">
<tr><th>old</th><th>new</th></tr>
`

const htmlDiffFooter = `</table>
</body>
</html>
`

// RenderHTMLDiff produces a byte-for-byte reproducible side-by-side HTML
// rendering of the differences between two text bodies. heading is used
// for the document title.
func RenderHTMLDiff(oldText, newText, heading string) string {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	var b strings.Builder
	title := html.EscapeString(heading)
	fmt.Fprintf(&b, htmlDiffHeader, title, title)

	for _, op := range Opcodes(oldLines, newLines) {
		switch op.Tag {
		case 'e':
			for k := 0; k < op.I2-op.I1; k++ {
				row(&b, "", oldLines[op.I1+k], "", newLines[op.J1+k])
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				row(&b, "del", oldLines[i], "", "")
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				row(&b, "", "", "add", newLines[j])
			}
		case 'r':
			n := op.I2 - op.I1
			if op.J2-op.J1 > n {
				n = op.J2 - op.J1
			}
			for k := 0; k < n; k++ {
				left, right := "", ""
				if op.I1+k < op.I2 {
					left = oldLines[op.I1+k]
				}
				if op.J1+k < op.J2 {
					right = newLines[op.J1+k]
				}
				row(&b, "chg", left, "chg", right)
			}
		}
	}

	b.WriteString(htmlDiffFooter)
	return b.String()
}

// WriteHTMLDiff renders the side-by-side diff for a section and writes it
// under outDir as diff_<section>.html (dots replaced by underscores).
// Returns the written path.
func WriteHTMLDiff(oldText, newText, sectionID, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	name := "diff_" + strings.ReplaceAll(sectionID, ".", "_") + ".html"
	path := filepath.Join(outDir, name)
	doc := RenderHTMLDiff(oldText, newText, "Section "+sectionID)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func row(b *strings.Builder, leftClass, left, rightClass, right string) {
	b.WriteString("<tr>")
	cell(b, leftClass, left)
	cell(b, rightClass, right)
	b.WriteString("</tr>\n")
}

func cell(b *strings.Builder, class, text string) {
	if class == "" {
		b.WriteString("<td>")
	} else {
		fmt.Fprintf(b, "<td class=%q>", class)
	}
	b.WriteString(html.EscapeString(text))
	b.WriteString("</td>")
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
