package main

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var speakerPalette = []lipgloss.Color{"#01cdfe", "#ff71ce", "#05ffa1", "#b967ff", "#fffb96", "#ff9f43"}

// renderer prints turns with per-speaker colors on a TTY and plain text otherwise.
type renderer struct {
	out    io.Writer
	styled bool
	title  lipgloss.Style
	muted  lipgloss.Style
	body   lipgloss.Style
}

func newRenderer(out *os.File) *renderer {
	tty := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
	r := &renderer{
		out:    out,
		styled: tty,
		title:  lipgloss.NewStyle(),
		muted:  lipgloss.NewStyle(),
		body:   lipgloss.NewStyle(),
	}
	if tty {
		r.title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f3f3ff"))
		r.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3d8"))
		r.body = lipgloss.NewStyle().Width(88).PaddingLeft(2)
	}
	return r
}

func (r *renderer) speakerStyle(speaker string) lipgloss.Style {
	if !r.styled {
		return lipgloss.NewStyle()
	}
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(speaker)))
	color := speakerPalette[h.Sum32()%uint32(len(speakerPalette))]
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

// Title prints a heading line.
func (r *renderer) Title(format string, args ...interface{}) {
	fmt.Fprintln(r.out, r.title.Render(fmt.Sprintf(format, args...)))
}

// Info prints a secondary line.
func (r *renderer) Info(format string, args ...interface{}) {
	fmt.Fprintln(r.out, r.muted.Render(fmt.Sprintf(format, args...)))
}

// Turn prints one utterance under its speaker.
func (r *renderer) Turn(speaker, text string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.speakerStyle(speaker).Render(speaker))
	if r.styled {
		fmt.Fprintln(r.out, r.body.Render(text))
		return
	}
	fmt.Fprintln(r.out, strings.Repeat("-", 40))
	fmt.Fprintln(r.out, text)
}
