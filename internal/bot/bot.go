// Package bot is the Telegram front-end: it hands out identity tokens and
// accepts documents for a user's namespace or for a one-shot share.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/and161185/cloudbox/internal/service"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Fetcher downloads a file Telegram handed out by URL.
type Fetcher func(ctx context.Context, url string, max int64) ([]byte, error)

// Options tune polling and replies.
type Options struct {
	PollTimeout  int    // long-poll seconds
	PublicURL    string // base of download links in replies
	MaxFileBytes int64
}

type mode int

const (
	modeNone mode = iota
	modeUpload
	modeShare
)

type Bot struct {
	api      API
	registry service.TokenRegistry
	ns       service.NamespaceManager
	shares   service.ShareManager
	fetch    Fetcher
	log      *zap.Logger
	opts     Options

	// pending is only touched from the update loop.
	pending map[int64]mode
}

// NewAPI connects to Telegram with the bot token.
func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = debug
	return api, nil
}

func New(api API, registry service.TokenRegistry, ns service.NamespaceManager, shares service.ShareManager, fetch Fetcher, log *zap.Logger, opts Options) *Bot {
	if fetch == nil {
		fetch = HTTPFetch(http.DefaultClient)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 20 << 20 // Bot API download cap
	}
	return &Bot{
		api:      api,
		registry: registry,
		ns:       ns,
		shares:   shares,
		fetch:    fetch,
		log:      log,
		opts:     opts,
		pending:  make(map[int64]mode),
	}
}

// Run long-polls until ctx is cancelled, handling one update at a time.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("telegram bot stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.Handle(ctx, upd)
		}
	}
}

// Handle processes one update to completion.
func (b *Bot) Handle(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

// HTTPFetch downloads with c, refusing bodies over max bytes.
func HTTPFetch(c *http.Client) Fetcher {
	return func(ctx context.Context, url string, max int64) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > max {
			return nil, errTooLarge
		}
		return data, nil
	}
}
