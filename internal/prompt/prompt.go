package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix is prepended to preset keys when looking them up in the
// environment, so the key "api_id" is answered by TG_API_ID.
const EnvPrefix = "TG"

var questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)

// NewPresets returns a viper instance answering prompts from the
// environment. Values from envFile are loaded into the environment first;
// a missing file is not an error.
func NewPresets(envFile string) (*viper.Viper, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v, nil
}

type Prompter struct {
	in         *bufio.Reader
	file       *os.File
	out        io.Writer
	errOut     io.Writer
	presets    *viper.Viper
	retryDelay time.Duration
	ctx        context.Context
	// pending holds a read that outlived a cancelled question. Its answer
	// goes to the next question.
	pending chan reply
}

type reply struct {
	line string
	err  error
}

type Option func(*Prompter)

// WithRetryDelay sets the pause after an answer that could not be parsed.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Prompter) { p.retryDelay = d }
}

func WithErrorOutput(w io.Writer) Option {
	return func(p *Prompter) { p.errOut = w }
}

// WithContext makes questions asked without an explicit context give up
// when ctx is done.
func WithContext(ctx context.Context) Option {
	return func(p *Prompter) { p.ctx = ctx }
}

func New(in io.Reader, out io.Writer, presets *viper.Viper, opts ...Option) *Prompter {
	if presets == nil {
		presets = viper.New()
	}
	p := &Prompter{
		in:         bufio.NewReader(in),
		out:        out,
		errOut:     os.Stderr,
		presets:    presets,
		retryDelay: time.Second,
		ctx:        context.Background(),
	}
	if f, ok := in.(*os.File); ok {
		p.file = f
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preset reports whether key has an answer that will not be asked for.
func (p *Prompter) Preset(key string) bool {
	return key != "" && p.presets.IsSet(key)
}

func (p *Prompter) String(key, message string) (string, error) {
	return p.StringContext(p.ctx, key, message)
}

// StringContext asks a question and returns early with the context's
// cause when ctx is done before an answer arrives.
func (p *Prompter) StringContext(ctx context.Context, key, message string) (string, error) {
	if p.Preset(key) {
		return strings.TrimSpace(p.presets.GetString(key)), nil
	}
	fmt.Fprint(p.out, questionStyle.Render(message))
	return p.readLine(ctx)
}

// Confirm asks a y/n question. Only "y" counts as yes.
func (p *Prompter) Confirm(key, message string) (bool, error) {
	answer, err := p.String(key, message)
	if err != nil {
		return false, err
	}
	return answer == "y", nil
}

// Decline asks a y/n question that defaults to yes. Only "n" counts as no.
func (p *Prompter) Decline(key, message string) (bool, error) {
	answer, err := p.String(key, message)
	if err != nil {
		return false, err
	}
	return answer == "n", nil
}

func (p *Prompter) Int(key, message string) (int, error) {
	n, err := p.Int64(key, message)
	return int(n), err
}

// Int64 asks until the answer parses as an integer. A preset answer that
// does not parse is an error, since asking again would return it again.
func (p *Prompter) Int64(key, message string) (int64, error) {
	for {
		answer, err := p.String(key, message)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(answer, 10, 64)
		if err == nil {
			return n, nil
		}
		if p.Preset(key) {
			return 0, fmt.Errorf("invalid value for %s_%s: %w", EnvPrefix, strings.ToUpper(key), err)
		}
		fmt.Fprintln(p.errOut, err)
		if p.retryDelay > 0 {
			time.Sleep(p.retryDelay)
		}
	}
}

func (p *Prompter) Secret(key, message string) (string, error) {
	return p.SecretContext(p.ctx, key, message)
}

// SecretContext reads an answer without echo when stdin is a terminal.
func (p *Prompter) SecretContext(ctx context.Context, key, message string) (string, error) {
	if p.Preset(key) {
		return p.presets.GetString(key), nil
	}
	if p.file == nil || p.pending != nil || !term.IsTerminal(int(p.file.Fd())) {
		return p.StringContext(ctx, "", message)
	}
	fmt.Fprint(p.out, questionStyle.Render(message))
	fd := int(p.file.Fd())
	secret, err := p.await(ctx, func() reply {
		b, err := term.ReadPassword(fd)
		return reply{line: string(b), err: err}
	})
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("error reading input: %w", err)
	}
	return secret, nil
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	line, err := p.await(ctx, func() reply {
		line, err := p.in.ReadString('\n')
		return reply{line: line, err: err}
	})
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("error reading input: %w", io.ErrUnexpectedEOF)
		}
		return "", fmt.Errorf("error reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// await runs read in the background unless a previous read is still in
// flight, and waits for it or for ctx. Only one read touches the input at
// a time.
func (p *Prompter) await(ctx context.Context, read func() reply) (string, error) {
	if p.pending == nil {
		ch := make(chan reply, 1)
		go func() { ch <- read() }()
		p.pending = ch
	}
	select {
	case <-ctx.Done():
		return "", context.Cause(ctx)
	case a := <-p.pending:
		p.pending = nil
		return a.line, a.err
	}
}
