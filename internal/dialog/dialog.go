// Package dialog is the address wizard: a pure transition function from
// (state, event) to (state, effects). Callers execute the effects.
package dialog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ggonzalez94/lpman/internal/address"
)

// State is the dialog marker stored in the user session. The zero value is Idle.
type State string

const (
	Idle            State = ""
	AwaitingAddress State = "awaiting_address"
)

// Known reports whether s is a state this package produces.
func (s State) Known() bool {
	return s == Idle || s == AwaitingAddress
}

type EventKind int

const (
	// EventSetAddress is the command that opens the wizard.
	EventSetAddress EventKind = iota + 1
	// EventCancel is the explicit leave-dialog command.
	EventCancel
	// EventCommand is any other slash command.
	EventCommand
	// EventText is a plain text message.
	EventText
	// EventNonText is a message without text (sticker, photo, ...).
	EventNonText
)

type Event struct {
	Kind EventKind
	Text string
}

type EffectKind int

const (
	EffectReply EffectKind = iota + 1
	EffectSaveAddress
)

// Effect is one side effect requested by a transition.
type Effect struct {
	Kind           EffectKind
	Text           string
	Address        string
	RemoveKeyboard bool
	Silent         bool
}

const (
	PromptAddress  = "Please enter your crypto address:"
	InvalidAddress = "Invalid crypto address. Please try again."
	LeftDialog     = "Left this dialog"
)

func Saved(addr string) string {
	return fmt.Sprintf("Your address has been saved: %s", addr)
}

func reply(text string) Effect {
	return Effect{Kind: EffectReply, Text: text}
}

// Transition applies ev to s. Unhandled events leave s unchanged with no
// effects; in Idle that means plain text is left to other handlers.
func Transition(s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EventCancel:
		return Idle, []Effect{{Kind: EffectReply, Text: LeftDialog, RemoveKeyboard: true, Silent: true}}
	case EventSetAddress:
		return AwaitingAddress, []Effect{reply(PromptAddress)}
	case EventCommand:
		return Idle, nil
	}

	if s != AwaitingAddress {
		return s, nil
	}
	switch ev.Kind {
	case EventText:
		addr := strings.TrimSpace(ev.Text)
		if !address.Valid(addr) {
			return AwaitingAddress, []Effect{reply(InvalidAddress)}
		}
		return Idle, []Effect{
			{Kind: EffectSaveAddress, Address: addr},
			reply(Saved(addr)),
		}
	case EventNonText:
		return AwaitingAddress, []Effect{reply(InvalidAddress)}
	}
	return s, nil
}

// Classify maps an inbound message to a dialog event.
func Classify(text string, hasText bool) Event {
	if !hasText {
		return Event{Kind: EventNonText}
	}
	if !strings.HasPrefix(text, "/") {
		return Event{Kind: EventText, Text: text}
	}
	switch CommandName(text) {
	case "setaddress":
		return Event{Kind: EventSetAddress, Text: text}
	case "cancel":
		return Event{Kind: EventCancel, Text: text}
	default:
		return Event{Kind: EventCommand, Text: text}
	}
}

// CommandName returns the lowercased command of a "/cmd@bot args" message,
// or "" when text is not a command.
func CommandName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	head := text[1:]
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head = head[:i]
	}
	cmd, _, _ := strings.Cut(head, "@")
	return strings.ToLower(cmd)
}
