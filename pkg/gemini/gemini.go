package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"

	"VerifyGolang/internal/entity"

	"github.com/google/generative-ai-go/genai"
	jsoniter "github.com/json-iterator/go"
	"google.golang.org/api/option"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const documentFieldsPrompt = `You are reading the front side of a government identity card. ` +
	`Extract the printed fields and answer with a single JSON object using exactly these keys: ` +
	`"full_name", "document_number", "birth_date", "expiry_date", "nationality", "sex". ` +
	`Use empty strings for fields that are not visible. Answer with JSON only, no markdown.`

type IGemini interface {
	AnalyzeImage(ctx context.Context, base64Image string, prompt string) (string, error)
	ExtractDocumentFields(ctx context.Context, imageData []byte) (entity.DocumentFields, error)
}

type geminiClient struct {
	apiKey    string
	modelName string
	client    *genai.Client
}

func NewGeminiClient() (IGemini, error) {

	apiKey := os.Getenv("GEMINI_API_KEY")

	modelName := os.Getenv("GEMINI_MODEL_NAME")
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	if modelName == "" {
		modelName = "gemini-pro-vision"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		apiKey:    apiKey,
		modelName: modelName,
		client:    client,
	}, nil
}

func (g *geminiClient) AnalyzeImage(ctx context.Context, base64Image string, prompt string) (string, error) {
	imgData, err := base64.StdEncoding.DecodeString(base64Image)
	if err != nil {
		return "", errors.New("invalid base64 image data")
	}

	model := g.client.GenerativeModel(g.modelName)

	if prompt == "" {
		prompt = "Analyze this image and provide details in JSON format."
	}

	img := genai.ImageData("image/jpeg", imgData)
	res, err := model.GenerateContent(ctx, genai.Text(prompt), img)
	if err != nil {
		return "", err
	}

	if len(res.Candidates) == 0 || len(res.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini API")
	}

	response := res.Candidates[0].Content.Parts[0]
	text, ok := response.(genai.Text)
	if !ok {
		return "", errors.New("unexpected response format from Gemini API")
	}

	return string(text), nil
}

// ExtractDocumentFields reads printed ID attributes from the captured front
// still. Models sometimes wrap the answer in a markdown fence despite the
// prompt, so the fence is stripped before parsing.
func (g *geminiClient) ExtractDocumentFields(ctx context.Context, imageData []byte) (entity.DocumentFields, error) {
	var fields entity.DocumentFields

	raw, err := g.AnalyzeImage(ctx, base64.StdEncoding.EncodeToString(imageData), documentFieldsPrompt)
	if err != nil {
		return fields, err
	}

	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.UnmarshalFromString(cleaned, &fields); err != nil {
		return entity.DocumentFields{}, errors.New("unparseable document fields response")
	}

	return fields, nil
}

func (g *geminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}
