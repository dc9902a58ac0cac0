package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clinisum/internal/domain"
)

const usageText = `🩺 *Clinical notes summarizer*

Send me clinical notes and I will reply with a summary for a physician, ` +
	`citing the source sentence behind every summary sentence\.

– /role _role_ _notes_ summarizes for another clinician, e\.g\. ` +
	"`/role nurse The patient has a fever.`" + `
– /start shows this message`

const (
	roleUsageText    = "✖️ Usage: /role _role_ _notes_"
	emptyNotesText   = "✖️ Send the clinical notes as text\\."
	failedText       = "❌ Failed to summarize the notes\\. Please try again later\\."
	timeoutText      = "⌛ Summarizing took too long\\. Please try again with shorter notes\\."
	commandRole      = "role"
	commandStart     = "start"
	commandHelp      = "help"
	unknownCmdPrefix = "✖️ Unknown command\\.\n\n"
)

type request struct {
	command string
	role    string
	notes   string
}

// parseRequest reads a message as either a command or plain notes.
// Plain notes are summarized for the default role.
func parseRequest(text string) request {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, "/") {
		return request{role: domain.DefaultRole, notes: text}
	}

	head, rest, _ := strings.Cut(text, " ")
	command, _, _ := strings.Cut(strings.TrimPrefix(head, "/"), "@")
	rest = strings.TrimSpace(rest)

	req := request{command: strings.ToLower(command)}
	if req.command == commandRole {
		role, notes, _ := strings.Cut(rest, " ")
		req.role = strings.TrimSpace(role)
		req.notes = strings.TrimSpace(notes)
	}

	return req
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	req := parseRequest(message.Text)

	switch req.command {
	case "":
		if req.notes == "" {
			return b.sendMessage(ctx, chatID, emptyNotesText)
		}
	case commandStart, commandHelp:
		return b.sendMessage(ctx, chatID, usageText)
	case commandRole:
		if req.role == "" || req.notes == "" {
			return b.sendMessage(ctx, chatID, roleUsageText)
		}
	default:
		return b.sendMessage(ctx, chatID, unknownCmdPrefix+usageText)
	}

	return b.withSpinner(ctx, chatID, func() error {
		return b.handleNotes(ctx, chatID, req)
	})
}

func (b *Bot) handleNotes(ctx context.Context, chatID int64, req request) error {
	res, err := b.summarizer.Summarize(ctx, req.notes, req.role)
	if err != nil {
		errs := []error{fmt.Errorf("summarize notes: %w", err)}

		reply := failedText
		if errors.Is(err, context.DeadlineExceeded) {
			reply = timeoutText
		}
		if sendErr := b.sendMessage(ctx, chatID, reply); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	b.log.InfoContext(ctx, "Summary of notes is generated",
		"chatID", chatID,
		"role", req.role,
		"tokens", res.Tokens,
		"referenceCount", len(res.References),
		"durationSeconds", res.Duration.Seconds(),
		"promptOverflow", res.Budget.Overflow)

	var errs []error
	for _, text := range formatResult(res) {
		if err = b.sendMessage(ctx, chatID, text); err != nil {
			errs = append(errs, fmt.Errorf("send message: %w", err))
		}
	}

	return errors.Join(errs...)
}
