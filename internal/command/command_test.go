package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var triggers = Triggers{Image: "智谱画图", Video: "智谱视频", Query: "查询进度"}

func TestExtractSizeKnownRatios(t *testing.T) {
	tests := map[string]string{
		"1:1":  "1024x1024",
		"1:2":  "720x1440",
		"2:1":  "1440x720",
		"3:4":  "864x1152",
		"4:3":  "1152x864",
		"9:16": "768x1344",
		"16:9": "1344x768",
	}

	for ratio, want := range tests {
		t.Run(ratio, func(t *testing.T) {
			size, cleaned := ExtractSize("sunset --ar " + ratio)
			assert.Equal(t, want, size)
			assert.Equal(t, "sunset", cleaned)
		})
	}
}

func TestExtractSizeFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		wantPrompt string
	}{
		{name: "absent", prompt: "sunset", wantPrompt: "sunset"},
		{name: "unknown ratio", prompt: "sunset --ar 5:7", wantPrompt: "sunset"},
		{name: "malformed", prompt: "sunset --ar wide", wantPrompt: "sunset --ar wide"},
		{name: "empty", prompt: "", wantPrompt: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, cleaned := ExtractSize(tt.prompt)
			assert.Equal(t, DefaultSize, size)
			assert.Equal(t, tt.wantPrompt, cleaned)
		})
	}
}

func TestExtractSizeTokenInMiddle(t *testing.T) {
	size, cleaned := ExtractSize("a red --ar 4:3 car")
	assert.Equal(t, "1152x864", size)
	assert.Equal(t, "a red  car", cleaned)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Command
		ok      bool
	}{
		{name: "image", content: "智谱画图 sunset --ar 16:9", want: Command{Action: ActionImage, Prompt: "sunset --ar 16:9"}, ok: true},
		{name: "video", content: "  智谱视频 a cat running in a park ", want: Command{Action: ActionVideo, Prompt: "a cat running in a park"}, ok: true},
		{name: "query", content: "查询进度", want: Command{Action: ActionQuery}, ok: true},
		{name: "query with trailing text", content: "查询进度 please", want: Command{Action: ActionQuery}, ok: true},
		{name: "trigger only", content: "智谱画图", want: Command{Action: ActionHelp}, ok: true},
		{name: "explicit help", content: "智谱视频 HELP", want: Command{Action: ActionHelp}, ok: true},
		{name: "unrelated", content: "hello there", ok: false},
		{name: "blank", content: "   ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.content, triggers)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHelpTextMentionsTriggers(t *testing.T) {
	text := HelpText(triggers)
	assert.Contains(t, text, "智谱画图")
	assert.Contains(t, text, "智谱视频")
	assert.Contains(t, text, "查询进度")
	assert.Contains(t, text, "16:9")
}
