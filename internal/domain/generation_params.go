package domain

// EnhancementSystemPrompt は、プロンプト改善時にチャットモデルへ渡す固定の指示です
const EnhancementSystemPrompt = `You are an expert at writing image generation prompts.
Enhance the given prompt to be more detailed and effective for image generation.
Focus on adding:
- Visual details
- Style descriptions
- Lighting and atmosphere
- Composition elements
Return only the enhanced prompt without any explanations.`

// 画像生成リクエストの固定パラメータ
const (
	ImageSynthesisSeed         = 42
	ImageSynthesisSourceWeight = 0.7
	ImageResponseFormatB64JSON = "b64_json"
	EnhancementTemperature     = 0.7
)
