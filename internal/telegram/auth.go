package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/gnomegl/teleinvite/internal/wizard"
)

// Prompter answers authentication questions.
type Prompter interface {
	StringContext(ctx context.Context, key, message string) (string, error)
	SecretContext(ctx context.Context, key, message string) (string, error)
}

// Authenticator asks the operator for login details of a session that has
// not been authorised yet.
type Authenticator struct {
	Ask Prompter
}

var _ auth.UserAuthenticator = Authenticator{}

var errSignUp = errors.New("phone number is not registered, sign up with an official app first")

func (a Authenticator) Phone(ctx context.Context) (string, error) {
	phone, err := a.Ask.StringContext(ctx, wizard.KeyPhoneNumber, "Enter your phone number (including country code): ")
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(phone, " ", ""), nil
}

func (a Authenticator) Password(ctx context.Context) (string, error) {
	return a.Ask.SecretContext(ctx, wizard.KeyPassword, "Enter your 2FA password: ")
}

func (a Authenticator) Code(ctx context.Context, sent *tg.AuthSentCode) (string, error) {
	msg := "Enter the code sent to your device: "
	if sent != nil {
		switch sent.Type.(type) {
		case *tg.AuthSentCodeTypeApp:
			msg = "Enter the code sent to your Telegram app: "
		case *tg.AuthSentCodeTypeSMS:
			msg = "Enter the code sent by SMS: "
		}
	}
	code, err := a.Ask.StringContext(ctx, wizard.KeyCode, msg)
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", fmt.Errorf("empty login code")
	}
	return code, nil
}

func (a Authenticator) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a Authenticator) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errSignUp
}
