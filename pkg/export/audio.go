// Package export turns assistant replies into downloadable artifacts.
package export

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/genai"

	"github.com/mikeboe/research-chat/pkg/prompt"
)

// Gemini TTS models return 16-bit little-endian mono PCM at 24 kHz.
const (
	sampleRate    = 24000
	bitsPerSample = 16
	channels      = 1
)

// Synthesizer converts text to raw PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, error)
}

// GeminiSynthesizer uses a Gemini speech generation model.
type GeminiSynthesizer struct {
	Client *genai.Client
	Model  string
	Voice  string
}

func NewGeminiSynthesizer(ctx context.Context, apiKey, model, voice string) (*GeminiSynthesizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiSynthesizer{Client: client, Model: model, Voice: voice}, nil
}

func (g *GeminiSynthesizer) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	resp, err := g.Client.Models.GenerateContent(ctx, g.Model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			LanguageCode: languageCode,
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.Voice},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("speech generation failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("speech generation returned no candidates")
	}

	var pcm []byte
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil {
			pcm = append(pcm, part.InlineData.Data...)
		}
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("speech generation returned no audio")
	}
	return pcm, nil
}

// AudioExporter writes spoken summaries to WAV files.
type AudioExporter struct {
	Synth Synthesizer
	Dir   string
}

func NewAudioExporter(synth Synthesizer, dir string) *AudioExporter {
	return &AudioExporter{Synth: synth, Dir: dir}
}

// Render synthesizes text and returns the path of the WAV file. Failures are
// logged and reported as ok == false.
func (e *AudioExporter) Render(ctx context.Context, text string, lang prompt.Language) (string, bool) {
	if e == nil || e.Synth == nil {
		return "", false
	}

	pcm, err := e.Synth.Synthesize(ctx, text, lang.Code())
	if err != nil {
		slog.Error("Audio generation failed", "error", err)
		return "", false
	}

	if e.Dir != "" {
		if err := os.MkdirAll(e.Dir, 0o755); err != nil {
			slog.Error("Audio generation failed", "error", err)
			return "", false
		}
	}
	f, err := os.CreateTemp(e.Dir, "summary-*.wav")
	if err != nil {
		slog.Error("Audio generation failed", "error", err)
		return "", false
	}
	defer f.Close()

	if _, err := f.Write(WAV(pcm)); err != nil {
		slog.Error("Audio generation failed", "error", err)
		_ = os.Remove(f.Name())
		return "", false
	}
	return f.Name(), true
}

// WAV wraps raw PCM samples in a RIFF/WAVE container.
func WAV(pcm []byte) []byte {
	var buf bytes.Buffer
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
