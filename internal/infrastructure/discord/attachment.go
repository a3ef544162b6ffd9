package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"akibot/internal/domain"
	"akibot/internal/infrastructure/imaging"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// MaxAttachmentSize は、ダウンロードする添付ファイルの上限です
const MaxAttachmentSize = 25 * 1024 * 1024

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// AttachmentFetcher は、Discordの添付ファイルをダウンロードして画像にデコードします
type AttachmentFetcher struct {
	httpClient *http.Client
	maxSize    int64
	logger     *zap.Logger
}

// NewAttachmentFetcher は新しいAttachmentFetcherインスタンスを作成します
func NewAttachmentFetcher(httpClient *http.Client, logger *zap.Logger) *AttachmentFetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentFetcher{
		httpClient: httpClient,
		maxSize:    MaxAttachmentSize,
		logger:     logger.With(zap.String("component", "attachment_fetcher")),
	}
}

// IsImageAttachment は、添付ファイルが画像かどうかを判定します
func IsImageAttachment(attachment *discordgo.MessageAttachment) bool {
	if attachment == nil {
		return false
	}
	if attachment.ContentType != "" {
		return strings.HasPrefix(attachment.ContentType, "image/")
	}
	return imageExtensions[strings.ToLower(path.Ext(attachment.Filename))]
}

// FindImageAttachment は、最初の画像添付ファイルを返します。見つからない場合はnilを返します
func FindImageAttachment(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, attachment := range attachments {
		if IsImageAttachment(attachment) {
			return attachment
		}
	}
	return nil
}

// FindImage は、最初の画像添付ファイルを返します
func (f *AttachmentFetcher) FindImage(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	return FindImageAttachment(attachments)
}

// Fetch は、添付ファイルをダウンロードしてSourceImageを返します
func (f *AttachmentFetcher) Fetch(ctx context.Context, attachment *discordgo.MessageAttachment) (domain.SourceImage, error) {
	if !IsImageAttachment(attachment) {
		return domain.SourceImage{}, domain.ErrUnsupportedAttachment
	}
	if int64(attachment.Size) > f.maxSize {
		return domain.SourceImage{}, fmt.Errorf("添付ファイルが大きすぎます (%d bytes): %w", attachment.Size, domain.ErrUnsupportedAttachment)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("添付ファイルのリクエスト作成に失敗: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("添付ファイルのダウンロードに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.SourceImage{}, fmt.Errorf("添付ファイルのダウンロードに失敗: status %d", resp.StatusCode)
	}

	// 画素数が上限を超える画像はヘッダーの段階で拒否されます
	img, format, err := imaging.DecodeImage(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("%w: %v", domain.ErrUnsupportedAttachment, err)
	}

	source := domain.NewSourceImage(img, format)
	f.logger.Debug("添付ファイルを読み込みました",
		zap.String("filename", attachment.Filename),
		zap.String("format", format),
		zap.Int("width", source.Width()),
		zap.Int("height", source.Height()))

	return source, nil
}
