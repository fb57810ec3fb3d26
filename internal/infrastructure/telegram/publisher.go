package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/domain"
	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
)

const (
	parseMode     = "MarkdownV2"
	deleteTimeout = 10 * time.Second
	uploadTimeout = 60 * time.Second
)

// Publisher posts albums to a Telegram channel via the Bot API.
//
// sendMediaGroup only accepts media the bot can reference, so every image is
// first sent as a silent standalone photo to obtain a file_id, and that
// standalone message is deleted right away.
type Publisher struct {
	baseURL      string
	botToken     string
	channelID    string
	linkLabel    string
	maxRedirects int
	api          *http.Client
	downloads    *http.Client
	logger       *zap.Logger
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers bot token and channel identifier.
func NewPublisher(cfg config.TelegramConfig, logger *zap.Logger) *Publisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Publisher{
		baseURL:      baseURL,
		botToken:     cfg.BotToken,
		channelID:    cfg.ChannelID,
		linkLabel:    cfg.LinkLabel,
		maxRedirects: cfg.MaxRedirects,
		api:          &http.Client{Timeout: timeout},
		downloads: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logging.OrNop(logger),
	}
}

type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Result      T      `json:"result"`
}

type photoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size"`
}

type message struct {
	MessageID int64       `json:"message_id"`
	Photo     []photoSize `json:"photo"`
}

type inputMediaPhoto struct {
	Type      string `json:"type"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// PublishAlbum acquires a file_id for every image concurrently and sends the
// album only when all of them succeeded.
func (p *Publisher) PublishAlbum(ctx context.Context, post domain.Post) error {
	if p.botToken == "" || p.channelID == "" {
		return fmt.Errorf("%w: telegram publisher misconfigured", domain.ErrConfig)
	}
	if len(post.Images) == 0 {
		return fmt.Errorf("%w: album without images", domain.ErrPublish)
	}

	handles := make([]string, len(post.Images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range post.Images {
		g.Go(func() error {
			handle, err := p.acquireHandle(gctx, img)
			if err != nil {
				return fmt.Errorf("image %d: %w", i+1, err)
			}
			handles[i] = handle
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	caption := BuildCaption(post, p.linkLabel)
	return p.sendMediaGroup(ctx, composeGroup(handles, caption))
}

// composeGroup puts the caption and parse mode on the first item only.
func composeGroup(handles []string, caption string) []inputMediaPhoto {
	media := make([]inputMediaPhoto, len(handles))
	for i, h := range handles {
		media[i] = inputMediaPhoto{Type: "photo", Media: h}
	}
	if len(media) > 0 && caption != "" {
		media[0].Caption = caption
		media[0].ParseMode = parseMode
	}
	return media
}

func (p *Publisher) acquireHandle(ctx context.Context, img domain.Image) (string, error) {
	var (
		body     io.Reader
		filename = "image"
	)
	if img.Remote() {
		path, release, err := download(ctx, p.downloads, img.URL, p.maxRedirects)
		if err != nil {
			return "", err
		}
		defer release()

		file, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", domain.ErrUpload, path, err)
		}
		defer file.Close()
		body = file
	} else if len(img.Data) > 0 {
		body = bytes.NewReader(img.Data)
	} else {
		return "", fmt.Errorf("%w: empty image", domain.ErrUpload)
	}

	// Once started, an upload runs to completion even if a sibling failed,
	// so its temporary channel message is always known and cleaned up.
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uploadTimeout)
	defer cancel()
	msg, err := p.sendPhoto(uploadCtx, body, filename+extension(img.ContentType))
	if err != nil {
		return "", err
	}

	p.deleteMessage(ctx, msg.MessageID)

	handle := largest(msg.Photo)
	if handle == "" {
		return "", &domain.ChannelError{Op: "sendPhoto", Description: "response carries no photo sizes", Kind: domain.ErrUpload}
	}
	return handle, nil
}

func (p *Publisher) sendPhoto(ctx context.Context, photo io.Reader, filename string) (message, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("chat_id", p.channelID)
	_ = form.WriteField("disable_notification", "true")
	part, err := form.CreateFormFile("photo", filename)
	if err != nil {
		return message{}, fmt.Errorf("%w: build form: %v", domain.ErrUpload, err)
	}
	if _, err := io.Copy(part, photo); err != nil {
		return message{}, fmt.Errorf("%w: read image: %v", domain.ErrUpload, err)
	}
	if err := form.Close(); err != nil {
		return message{}, fmt.Errorf("%w: build form: %v", domain.ErrUpload, err)
	}

	var resp apiResponse[message]
	if err := p.call(ctx, "sendPhoto", form.FormDataContentType(), &buf, &resp); err != nil {
		return message{}, fmt.Errorf("%w: %w", domain.ErrUpload, err)
	}
	if !resp.OK {
		return message{}, &domain.ChannelError{Op: "sendPhoto", Description: resp.Description, Kind: domain.ErrUpload}
	}
	return resp.Result, nil
}

// deleteMessage removes the standalone upload. It survives cancellation of
// the invocation and only logs failures; the file_id stays valid either way.
func (p *Publisher) deleteMessage(ctx context.Context, messageID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()

	payload, _ := json.Marshal(map[string]any{"chat_id": p.channelID, "message_id": messageID})
	var resp apiResponse[bool]
	if err := p.call(ctx, "deleteMessage", "application/json", bytes.NewReader(payload), &resp); err != nil {
		p.logger.Warn("delete temp message", zap.Int64("message_id", messageID), zap.Error(err))
		return
	}
	if !resp.OK {
		p.logger.Warn("delete temp message", zap.Int64("message_id", messageID), zap.String("description", resp.Description))
	}
}

func (p *Publisher) sendMediaGroup(ctx context.Context, media []inputMediaPhoto) error {
	encoded, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("%w: encode media: %v", domain.ErrPublish, err)
	}
	payload, err := json.Marshal(map[string]string{
		"chat_id": p.channelID,
		"media":   string(encoded),
	})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", domain.ErrPublish, err)
	}

	var resp apiResponse[[]message]
	if err := p.call(ctx, "sendMediaGroup", "application/json", bytes.NewReader(payload), &resp); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPublish, err)
	}
	if !resp.OK {
		return &domain.ChannelError{Op: "sendMediaGroup", Description: resp.Description, Kind: domain.ErrPublish}
	}

	p.logger.Info("album published", zap.Int("messages", len(resp.Result)))
	return nil
}

// call posts to a Bot API method and decodes the JSON envelope. Telegram
// answers errors with a JSON body too, so non-2xx statuses are decoded.
func (p *Publisher) call(ctx context.Context, method, contentType string, body io.Reader, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", p.baseURL, p.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.api.Do(req)
	if err != nil {
		return domain.Timeout(method, fmt.Errorf("%s: %w", method, redact(err, p.botToken)))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Timeout(method, fmt.Errorf("%s: read response: %w", method, err))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %s: undecodable response: %s", method, resp.Status, snippet(raw))
	}
	return nil
}

func largest(sizes []photoSize) string {
	best := -1
	for i, s := range sizes {
		if s.FileID == "" {
			continue
		}
		if best < 0 || area(s) > area(sizes[best]) || (area(s) == area(sizes[best]) && s.FileSize > sizes[best].FileSize) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return sizes[best].FileID
}

func area(s photoSize) int {
	return s.Width * s.Height
}

func extension(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return strconv.Quote(s)
}

// redact keeps the bot token out of logged URLs.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), cause: err}
}

type redactedError struct {
	msg   string
	cause error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.cause }
