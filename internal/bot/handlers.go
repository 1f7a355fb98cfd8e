package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/and161185/cloudbox/internal/convert"
	"github.com/and161185/cloudbox/internal/errs"
	"github.com/and161185/cloudbox/internal/model"
)

// callback data
const (
	cbToken      = "token"
	cbConfirmYes = "confirm_yes"
	cbConfirmNo  = "confirm_no"
	cbUpload     = "upload"
	cbShare      = "share"
)

const (
	msgWelcome    = "Welcome to Cloud Storage Bot! Here you can upload and manage your files."
	msgNoToken    = "You do not have a token yet. Please generate one."
	msgConfirm    = "Are you sure you want to generate a new token?"
	msgCancelled  = "Token generation cancelled. Returning to menu."
	msgUpload     = "Folder created for your token. Please upload your file."
	msgShare      = "Send a file and I will reply with a one-time share link."
	msgPickMode   = "Press Upload or Share first, then send the file."
	msgStartFirst = "Send /start first."
	msgFailed     = "Something went wrong, please try again later."
	msgBadName    = "This file name cannot be stored."
	msgTooLarge   = "The file is too large."
	msgHelp       = "/start - show your token and the menu\n" +
		"/help - this message\n\n" +
		"Token - generate a new access token (the old one stops working)\n" +
		"Upload - store files in your folder\n" +
		"Share - get a one-time link for a single file"
)

var errTooLarge = errors.New("file too large")

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Token", cbToken),
			tgbotapi.NewInlineKeyboardButtonData("Upload", cbUpload),
			tgbotapi.NewInlineKeyboardButtonData("Share", cbShare),
		),
	)
}

func confirmMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes", cbConfirmYes),
			tgbotapi.NewInlineKeyboardButtonData("No", cbConfirmNo),
		),
	)
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID
	switch {
	case m.IsCommand():
		b.log.Debug("command", zap.Int64("chat", chatID), zap.String("cmd", m.Command()))
		switch m.Command() {
		case "start":
			b.start(ctx, chatID)
		case "help":
			b.reply(chatID, msgHelp, nil)
		default:
			b.reply(chatID, msgHelp, nil)
		}
	case m.Document != nil:
		b.document(ctx, chatID, m.Document)
	}
}

func (b *Bot) start(ctx context.Context, chatID int64) {
	if err := b.registry.EnsureRegistered(ctx, chatID); err != nil {
		b.failed(chatID, "ensure registered", err)
		return
	}
	tok, err := b.registry.CurrentToken(ctx, chatID)
	if err != nil {
		b.failed(chatID, "current token", err)
		return
	}
	text := msgWelcome
	if tok != "" {
		text += "\n\nYour current token: " + tok
	} else {
		text += "\n\n" + msgNoToken
	}
	kb := mainMenu()
	b.reply(chatID, text, &kb)
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			b.log.Warn("answer callback", zap.Error(err))
		}
	}()
	if q.Message == nil || q.Message.Chat == nil {
		return
	}
	chatID := q.Message.Chat.ID
	b.log.Debug("callback", zap.Int64("chat", chatID), zap.String("data", q.Data))

	switch q.Data {
	case cbToken:
		kb := confirmMenu()
		b.reply(chatID, msgConfirm, &kb)
	case cbConfirmYes:
		tok, err := b.registry.RotateToken(ctx, chatID)
		if err != nil {
			b.failed(chatID, "rotate token", err)
			return
		}
		b.reply(chatID, "Your new token is: "+tok, nil)
	case cbConfirmNo:
		b.reply(chatID, msgCancelled, nil)
	case cbUpload:
		tok, ok := b.tokenOrPrompt(ctx, chatID)
		if !ok {
			return
		}
		if err := b.ns.Create(ctx, tok); err != nil {
			b.failed(chatID, "create namespace", err)
			return
		}
		b.pending[chatID] = modeUpload
		b.reply(chatID, msgUpload, nil)
	case cbShare:
		b.pending[chatID] = modeShare
		b.reply(chatID, msgShare, nil)
	}
}

// tokenOrPrompt returns the chat's current token or tells the user to make one.
func (b *Bot) tokenOrPrompt(ctx context.Context, chatID int64) (string, bool) {
	tok, err := b.registry.CurrentToken(ctx, chatID)
	if err != nil {
		b.failed(chatID, "current token", err)
		return "", false
	}
	if tok == "" {
		b.reply(chatID, msgNoToken, nil)
		return "", false
	}
	return tok, true
}

func (b *Bot) document(ctx context.Context, chatID int64, doc *tgbotapi.Document) {
	md := b.pending[chatID]
	if md == modeNone {
		kb := mainMenu()
		b.reply(chatID, msgPickMode, &kb)
		return
	}
	name := doc.FileName
	if name == "" {
		name = "file_" + doc.FileUniqueID
	}
	if int64(doc.FileSize) > b.opts.MaxFileBytes {
		b.reply(chatID, msgTooLarge, nil)
		return
	}
	data, err := b.download(ctx, doc.FileID)
	if err != nil {
		b.failed(chatID, "download", err)
		return
	}

	switch md {
	case modeUpload:
		tok, ok := b.tokenOrPrompt(ctx, chatID)
		if !ok {
			return
		}
		// the token may have been rotated since Upload was pressed
		if err := b.ns.Create(ctx, tok); err != nil {
			b.failed(chatID, "create namespace", err)
			return
		}
		if err := b.ns.Put(ctx, tok, name, data); err != nil {
			b.failed(chatID, "put entry", err)
			return
		}
		text := fmt.Sprintf("Saved %s (%d bytes).", name, len(data))
		if u := convert.EntryURL(b.opts.PublicURL, "namespaces", tok, name); u != "" {
			text += "\n" + u
		}
		b.reply(chatID, text, nil)
	case modeShare:
		delete(b.pending, chatID)
		sh, err := b.shares.Create(ctx, []model.Entry{{Name: name, Data: data}})
		if err != nil {
			b.failed(chatID, "create share", err)
			return
		}
		link := convert.EntryURL(b.opts.PublicURL, "shares", sh.Token, name)
		if link == "" {
			link = "share token: " + sh.Token
		}
		b.reply(chatID, "Share link: "+link, nil)
	}
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	return b.fetch(ctx, url, b.opts.MaxFileBytes)
}

func (b *Bot) failed(chatID int64, op string, err error) {
	switch {
	case errors.Is(err, errs.ErrIdentityUnknown):
		b.reply(chatID, msgStartFirst, nil)
		return
	case errors.Is(err, errs.ErrUnsafeName):
		b.reply(chatID, msgBadName, nil)
		return
	case errors.Is(err, errTooLarge):
		b.reply(chatID, msgTooLarge, nil)
		return
	}
	// the bot token appears in Telegram file URLs
	b.log.Error(op, zap.Int64("chat", chatID), zap.String("error", redact(err.Error())))
	b.reply(chatID, msgFailed, nil)
}

func redact(s string) string {
	if i := strings.Index(s, "/file/bot"); i >= 0 {
		return s[:i] + "/file/bot<redacted>"
	}
	return s
}

func (b *Bot) reply(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("send message", zap.Int64("chat", chatID), zap.Error(err))
	}
}
