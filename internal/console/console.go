package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
)

const banner = `
 _____ _____ _    _____ ___ _  _ __   _____ _____ ___ ___
|_   _| ____| |  | ____|_ _| \| |\ \ / /_ _|_   _| __| _ \
  | | |  _| | |__|  _|  | || .' | \ V / | |  | | | _||   /
  |_| |_____|____|_____|___|_|\_|  \_/ |___| |_| |___|_|_\

This application can be used to add all members of your groups to a target group.
Version: %s
Usage: - Please answer the questions!
       - You can use CTRL+C to skip the client when the application is trying to add members.
`

// Printer writes coloured status lines. When progress is enabled, invite
// counts are drawn as one progress bar per account instead of lines.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	progress bool
	bar      *progressbar.ProgressBar
	session  string
}

func New(out io.Writer, progress bool) *Printer {
	return &Printer{out: out, progress: progress}
}

func (p *Printer) Banner(version string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, bannerStyle.Render(fmt.Sprintf(banner, version)))
}

func (p *Printer) Info(format string, args ...any) {
	p.line(infoStyle, "[INFO] ", format, args...)
}

func (p *Printer) Success(format string, args ...any) {
	p.line(successStyle, "[SUCCESS] ", format, args...)
}

func (p *Printer) Warning(format string, args ...any) {
	p.line(warningStyle, "[WARNING] ", format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.line(errorStyle, "[ERROR] ", format, args...)
}

// Notice reports per-batch activity.
func (p *Printer) Notice(format string, args ...any) {
	if p.progress {
		return
	}
	p.line(noticeStyle, "[INFO] ", format, args...)
}

// Invited records the running total of accepted invitations for session.
func (p *Printer) Invited(session string, total, limit int) {
	if !p.progress {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil || p.session != session {
		p.endBar()
		p.session = session
		p.bar = progressbar.NewOptions(limit,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(session),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
		)
	}
	_ = p.bar.Set(total)
}

func (p *Printer) line(style lipgloss.Style, prefix, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		fmt.Fprintln(p.out, style.Render(prefix+fmt.Sprintf(format, args...)))
		return
	}
	// The bar stays at its count and is redrawn below the line.
	_ = p.bar.Clear()
	fmt.Fprintln(p.out, style.Render(prefix+fmt.Sprintf(format, args...)))
	_ = p.bar.RenderBlank()
}

// endBar leaves the current bar on screen at its last count.
func (p *Printer) endBar() {
	if p.bar == nil {
		return
	}
	fmt.Fprintln(p.out)
	p.bar = nil
	p.session = ""
}
