package media

import (
	"context"
	"fmt"
	"os"
	"strings"

	"companion/internal/defaults"
	"companion/internal/provider"
)

// VisionDescriber 读取图片并交给视觉模型描述
// VisionDescriber reads an image and asks the vision model about it
type VisionDescriber struct {
	gateway provider.VisionGateway
	// Question is asked when the caller gives none
	Question string
}

func NewVisionDescriber(gw provider.VisionGateway) *VisionDescriber {
	return &VisionDescriber{gateway: gw}
}

func (v *VisionDescriber) Describe(ctx context.Context, path, question string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if strings.TrimSpace(question) == "" {
		question = v.Question
	}
	if strings.TrimSpace(question) == "" {
		question = defaults.DefaultVisionQuestion
	}
	prompt := fmt.Sprintf(defaults.VisionPrompt, question)
	return v.gateway.Describe(ctx, prompt, data, MIMEType(path))
}
