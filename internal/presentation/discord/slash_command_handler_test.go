package discord

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"akibot/internal/application"
	"akibot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResponder は、送信された応答を記録します
type fakeResponder struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
}

func (r *fakeResponder) Respond(_ *discordgo.Interaction, response *discordgo.InteractionResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response)
	return nil
}

func (r *fakeResponder) Edit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, edit)
	return nil
}

// fakeService は、テスト用のImageServiceです
type fakeService struct {
	enhanceFunc  func(ctx context.Context, prompt domain.Prompt) (string, error)
	generateFunc func(ctx context.Context, request domain.ImageGenerationRequest) (*domain.ImageGenerationResult, error)
	requests     []domain.ImageGenerationRequest
}

func (s *fakeService) EnhancePrompt(ctx context.Context, prompt domain.Prompt) (string, error) {
	if s.enhanceFunc != nil {
		return s.enhanceFunc(ctx, prompt)
	}
	return "enhanced " + prompt.String(), nil
}

func (s *fakeService) GenerateImage(ctx context.Context, request domain.ImageGenerationRequest) (*domain.ImageGenerationResult, error) {
	s.requests = append(s.requests, request)
	if s.generateFunc != nil {
		return s.generateFunc(ctx, request)
	}
	return &domain.ImageGenerationResult{
		Image: &domain.GeneratedImage{
			Image:  image.NewRGBA(image.Rect(0, 0, 1, 1)),
			Format: "png",
			Data:   []byte{0x89, 'P', 'N', 'G'},
			Model:  "step-1x-medium",
		},
		OriginalPrompt: request.Prompt.String(),
		UsedPrompt:     request.Prompt.String(),
	}, nil
}

func (s *fakeService) Models() (string, string) {
	return "gpt-4", "step-1x-medium"
}

// fakeFetcher は、テスト用のImageFetcherです
type fakeFetcher struct {
	err     error
	fetched []*discordgo.MessageAttachment
}

func (f *fakeFetcher) FindImage(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	if len(attachments) == 0 {
		return nil
	}
	return attachments[0]
}

func (f *fakeFetcher) Fetch(_ context.Context, attachment *discordgo.MessageAttachment) (domain.SourceImage, error) {
	f.fetched = append(f.fetched, attachment)
	if f.err != nil {
		return domain.SourceImage{}, f.err
	}
	return domain.NewSourceImage(image.NewRGBA(image.Rect(0, 0, 4, 4)), "png"), nil
}

type countingBusyRecorder struct {
	count int
}

func (r *countingBusyRecorder) RecordBusyRejection() { r.count++ }

func newTestSlashHandler(service *fakeService, fetcher *fakeFetcher, recorder *countingBusyRecorder) *SlashCommandHandler {
	return NewSlashCommandHandler(nil, HandlerDeps{
		Service:  service,
		Fetcher:  fetcher,
		Busy:     NewBusyTracker(),
		Recorder: recorder,
		Credentials: []domain.Credential{
			domain.NewCredential(domain.StepAPIKeyName, "step-secret-value", "environment"),
			domain.NewCredential(domain.OpenAIAPIKeyName, "sk-secret-value", "bundle"),
		},
	}, nil)
}

func commandInteraction(channelID, name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: channelID,
		GuildID:   "guild1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "user1", Username: "alice"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: options,
			Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
				Attachments: map[string]*discordgo.MessageAttachment{
					"att1": {ID: "att1", Filename: "photo.png", ContentType: "image/png", URL: "https://cdn.example.com/photo.png"},
				},
			},
		},
	}
}

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func attachmentOpt(id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: "image", Type: discordgo.ApplicationCommandOptionAttachment, Value: id}
}

func boolOpt(name string, value bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: value}
}

func TestCommands(t *testing.T) {
	names := make([]string, 0)
	for _, command := range Commands() {
		names = append(names, command.Name)
	}
	assert.Equal(t, []string{CommandEnhance, CommandGenerate, CommandStatus}, names)
}

func TestSlashCommandHandler_Generate(t *testing.T) {
	service := &fakeService{}
	fetcher := &fakeFetcher{}
	handler := newTestSlashHandler(service, fetcher, &countingBusyRecorder{})

	service.generateFunc = func(ctx context.Context, request domain.ImageGenerationRequest) (*domain.ImageGenerationResult, error) {
		// 生成中はチャンネルが処理中になっている
		assert.Equal(t, StateInFlight, handler.deps.Busy.State("ch1"))
		return (&fakeService{}).GenerateImage(ctx, request)
	}

	responder := &fakeResponder{}
	handler.handleCommand(responder, commandInteraction("ch1", CommandGenerate,
		attachmentOpt("att1"), stringOpt("prompt", "a cat in the snow"), boolOpt("enhance", true)))

	require.Len(t, responder.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, responder.responses[0].Type)

	require.Len(t, responder.edits, 1)
	edit := responder.edits[0]
	require.NotNil(t, edit.Content)
	assert.Contains(t, *edit.Content, "画像を生成しました")
	require.Len(t, edit.Files, 1)
	assert.Equal(t, "generated.png", edit.Files[0].Name)
	assert.Equal(t, "image/png", edit.Files[0].ContentType)

	require.Len(t, service.requests, 1)
	request := service.requests[0]
	assert.Equal(t, "a cat in the snow", request.Prompt.String())
	assert.True(t, request.Enhance)
	assert.Equal(t, "alice", request.Requester.Username)
	assert.Equal(t, "ch1", request.Requester.ChannelID)
	require.Len(t, fetcher.fetched, 1)
	assert.Equal(t, "att1", fetcher.fetched[0].ID)

	assert.Equal(t, StateIdle, handler.deps.Busy.State("ch1"))
}

func TestSlashCommandHandler_GenerateErrors(t *testing.T) {
	tests := []struct {
		name       string
		fetchErr   error
		serviceErr error
		want       string
	}{
		{
			name:     "添付ファイルを読み込めない",
			fetchErr: domain.ErrUnsupportedAttachment,
			want:     "添付ファイルを画像として読み込めませんでした",
		},
		{
			name:       "通信エラー",
			serviceErr: domain.TransportError("synthesize", errors.New("connection refused")),
			want:       "APIに接続できませんでした",
		},
		{
			name:       "不正な応答",
			serviceErr: domain.MalformedResponseError("synthesize", "data is empty"),
			want:       "APIから不正な応答が返されました",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakeService{}
			if tt.serviceErr != nil {
				service.generateFunc = func(context.Context, domain.ImageGenerationRequest) (*domain.ImageGenerationResult, error) {
					return nil, tt.serviceErr
				}
			}
			handler := newTestSlashHandler(service, &fakeFetcher{err: tt.fetchErr}, &countingBusyRecorder{})

			responder := &fakeResponder{}
			handler.handleCommand(responder, commandInteraction("ch1", CommandGenerate,
				attachmentOpt("att1"), stringOpt("prompt", "a cat")))

			require.Len(t, responder.edits, 1)
			assert.Contains(t, *responder.edits[0].Content, tt.want)
			assert.Empty(t, responder.edits[0].Files)
			assert.Equal(t, StateIdle, handler.deps.Busy.State("ch1"))
		})
	}
}

func TestSlashCommandHandler_GenerateInvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		options []*discordgo.ApplicationCommandInteractionDataOption
		want    string
	}{
		{
			name:    "プロンプトが空白のみ",
			options: []*discordgo.ApplicationCommandInteractionDataOption{attachmentOpt("att1"), stringOpt("prompt", "   ")},
			want:    "プロンプトを入力してください",
		},
		{
			name:    "添付ファイルが解決できない",
			options: []*discordgo.ApplicationCommandInteractionDataOption{attachmentOpt("unknown"), stringOpt("prompt", "a cat")},
			want:    "添付ファイルを画像として読み込めませんでした",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakeService{}
			fetcher := &fakeFetcher{}
			handler := newTestSlashHandler(service, fetcher, &countingBusyRecorder{})

			responder := &fakeResponder{}
			handler.handleCommand(responder, commandInteraction("ch1", CommandGenerate, tt.options...))

			require.Len(t, responder.responses, 1)
			response := responder.responses[0]
			assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, response.Type)
			assert.Equal(t, discordgo.MessageFlagsEphemeral, response.Data.Flags)
			assert.Contains(t, response.Data.Content, tt.want)
			assert.Empty(t, responder.edits)
			assert.Empty(t, fetcher.fetched)
			assert.Empty(t, service.requests)
		})
	}
}

func TestSlashCommandHandler_BusyChannel(t *testing.T) {
	service := &fakeService{}
	recorder := &countingBusyRecorder{}
	handler := newTestSlashHandler(service, &fakeFetcher{}, recorder)

	require.True(t, handler.deps.Busy.TryAcquire("ch1"))

	responder := &fakeResponder{}
	handler.handleCommand(responder, commandInteraction("ch1", CommandGenerate,
		attachmentOpt("att1"), stringOpt("prompt", "a cat")))
	handler.handleCommand(responder, commandInteraction("ch1", CommandEnhance, stringOpt("prompt", "a cat")))

	require.Len(t, responder.responses, 2)
	for _, response := range responder.responses {
		assert.Equal(t, discordgo.MessageFlagsEphemeral, response.Data.Flags)
		assert.Contains(t, response.Data.Content, "処理中です")
	}
	assert.Equal(t, 2, recorder.count)
	assert.Empty(t, service.requests)

	// 処理中の操作は拒否された要求によって解放されない
	assert.Equal(t, StateInFlight, handler.deps.Busy.State("ch1"))

	// 別チャンネルは影響を受けない
	other := &fakeResponder{}
	handler.handleCommand(other, commandInteraction("ch2", CommandEnhance, stringOpt("prompt", "a cat")))
	require.Len(t, other.edits, 1)
}

func TestSlashCommandHandler_Enhance(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		handler := newTestSlashHandler(&fakeService{}, &fakeFetcher{}, &countingBusyRecorder{})

		responder := &fakeResponder{}
		handler.handleCommand(responder, commandInteraction("ch1", CommandEnhance, stringOpt("prompt", "a cat")))

		require.Len(t, responder.responses, 1)
		assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, responder.responses[0].Type)
		require.Len(t, responder.edits, 1)
		assert.Contains(t, *responder.edits[0].Content, "enhanced a cat")
		assert.Contains(t, *responder.edits[0].Content, "プロンプトを改善しました")
	})

	t.Run("失敗", func(t *testing.T) {
		service := &fakeService{
			enhanceFunc: func(context.Context, domain.Prompt) (string, error) {
				return "", domain.MalformedResponseError("enhance", "choices is empty")
			},
		}
		handler := newTestSlashHandler(service, &fakeFetcher{}, &countingBusyRecorder{})

		responder := &fakeResponder{}
		handler.handleCommand(responder, commandInteraction("ch1", CommandEnhance, stringOpt("prompt", "a cat")))

		require.Len(t, responder.edits, 1)
		assert.Contains(t, *responder.edits[0].Content, "APIから不正な応答が返されました")
		assert.Equal(t, StateIdle, handler.deps.Busy.State("ch1"))
	})
}

func TestSlashCommandHandler_Status(t *testing.T) {
	handler := newTestSlashHandler(&fakeService{}, &fakeFetcher{}, &countingBusyRecorder{})

	responder := &fakeResponder{}
	handler.handleCommand(responder, commandInteraction("ch1", CommandStatus))

	require.Len(t, responder.responses, 1)
	content := responder.responses[0].Data.Content
	assert.Equal(t, discordgo.MessageFlagsEphemeral, responder.responses[0].Data.Flags)
	assert.Contains(t, content, "`step...`")
	assert.Contains(t, content, "`sk-s...`")
	assert.Contains(t, content, "gpt-4")
	assert.Contains(t, content, "step-1x-medium")
	assert.Contains(t, content, "待機中")
	assert.NotContains(t, content, "secret")
}

func TestParseGenerateOptions(t *testing.T) {
	data := commandInteraction("ch1", CommandGenerate,
		attachmentOpt("att1"), stringOpt("prompt", "a cat")).ApplicationCommandData()

	options, err := parseGenerateOptions(data)
	require.NoError(t, err)
	assert.Equal(t, "a cat", options.prompt)
	assert.False(t, options.enhance)
	require.NotNil(t, options.attachment)
	assert.Equal(t, "photo.png", options.attachment.Filename)
}

func TestInteractionRequester(t *testing.T) {
	t.Run("サーバー内", func(t *testing.T) {
		requester := interactionRequester(commandInteraction("ch1", CommandStatus))
		assert.Equal(t, "user1", requester.UserID)
		assert.Equal(t, "guild1", requester.GuildID)
	})

	t.Run("DM", func(t *testing.T) {
		requester := interactionRequester(&discordgo.Interaction{
			ChannelID: "dm1",
			User:      &discordgo.User{ID: "user2", Username: "bob"},
		})
		assert.Equal(t, "bob", requester.Username)
		assert.Empty(t, requester.GuildID)
	})
}

// countingEnhancer は、呼び出し回数を数えるPromptEnhancerです
type countingEnhancer struct {
	mu    sync.Mutex
	calls int
}

func (e *countingEnhancer) Enhance(_ context.Context, prompt domain.Prompt) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return "a fluffy " + prompt.String() + " in soft light", nil
}

func (e *countingEnhancer) Model() string { return "gpt-4" }

// recordingSynthesizer は、受け取ったプロンプトを記録するImageSynthesizerです
type recordingSynthesizer struct {
	prompts []string
}

func (s *recordingSynthesizer) Synthesize(_ context.Context, _ domain.SourceImage, prompt domain.Prompt) (*domain.GeneratedImage, error) {
	s.prompts = append(s.prompts, prompt.String())
	return &domain.GeneratedImage{
		Image:  image.NewRGBA(image.Rect(0, 0, 1, 1)),
		Format: "jpeg",
		Data:   []byte{0xff, 0xd8},
		Model:  "step-1x-medium",
	}, nil
}

func (s *recordingSynthesizer) Model() string { return "step-1x-medium" }

func TestSlashCommandHandler_GenerateReusesEnhancedPrompt(t *testing.T) {
	enhancer := &countingEnhancer{}
	synthesizer := &recordingSynthesizer{}
	service := application.NewImageGenerationService(enhancer, synthesizer, nil, nil)

	handler := NewSlashCommandHandler(nil, HandlerDeps{
		Service: service,
		Fetcher: &fakeFetcher{},
	}, nil)

	responder := &fakeResponder{}
	handler.handleCommand(responder, commandInteraction("ch1", CommandEnhance, stringOpt("prompt", "cat")))
	handler.handleCommand(responder, commandInteraction("ch1", CommandGenerate,
		attachmentOpt("att1"), stringOpt("prompt", "cat"), boolOpt("enhance", true)))

	// 改善は /enhance の1回のみで、生成には改善済みプロンプトが使われる
	assert.Equal(t, 1, enhancer.calls)
	require.Len(t, synthesizer.prompts, 1)
	assert.Equal(t, "a fluffy cat in soft light", synthesizer.prompts[0])

	require.Len(t, responder.edits, 2)
	assert.Contains(t, *responder.edits[1].Content, "改善後のプロンプト: a fluffy cat in soft light")

	// 別のプロンプトでは再利用しない
	handler.handleCommand(responder, commandInteraction("ch1", CommandGenerate,
		attachmentOpt("att1"), stringOpt("prompt", "dog"), boolOpt("enhance", true)))
	assert.Equal(t, 2, enhancer.calls)

	// 生成時の改善結果も記録され、同じプロンプトの再生成で再利用される
	handler.handleCommand(responder, commandInteraction("ch1", CommandGenerate,
		attachmentOpt("att1"), stringOpt("prompt", "dog"), boolOpt("enhance", true)))
	assert.Equal(t, 2, enhancer.calls)
	assert.Equal(t, "a fluffy dog in soft light", synthesizer.prompts[2])

	// 改善を指定しない場合は元のプロンプトで生成する
	handler.handleCommand(responder, commandInteraction("ch1", CommandGenerate,
		attachmentOpt("att1"), stringOpt("prompt", "dog")))
	assert.Equal(t, 2, enhancer.calls)
	assert.Equal(t, "dog", synthesizer.prompts[3])
}

func TestSlashCommandHandler_EnhancedPromptIsPerUser(t *testing.T) {
	enhancer := &countingEnhancer{}
	service := application.NewImageGenerationService(enhancer, &recordingSynthesizer{}, nil, nil)
	handler := NewSlashCommandHandler(nil, HandlerDeps{Service: service, Fetcher: &fakeFetcher{}}, nil)

	handler.handleCommand(&fakeResponder{}, commandInteraction("ch1", CommandEnhance, stringOpt("prompt", "cat")))

	other := commandInteraction("ch1", CommandGenerate,
		attachmentOpt("att1"), stringOpt("prompt", "cat"), boolOpt("enhance", true))
	other.Member = &discordgo.Member{User: &discordgo.User{ID: "user2", Username: "bob"}}
	handler.handleCommand(&fakeResponder{}, other)

	assert.Equal(t, 2, enhancer.calls)
}
