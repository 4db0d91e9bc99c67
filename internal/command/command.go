// Package command recognizes chat trigger phrases and extracts the prompt
// and image size from a message.
package command

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSize is used when no aspect ratio or an unknown one is given.
const DefaultSize = "1024x1024"

// ratioSizes maps the supported --ar values to pixel dimensions.
var ratioSizes = map[string]string{
	"1:1":  "1024x1024",
	"1:2":  "720x1440",
	"2:1":  "1440x720",
	"3:4":  "864x1152",
	"4:3":  "1152x864",
	"9:16": "768x1344",
	"16:9": "1344x768",
}

// SupportedRatios lists the ratios in the order shown in help text.
var SupportedRatios = []string{"1:1", "1:2", "2:1", "3:4", "4:3", "16:9", "9:16"}

var aspectRatioPattern = regexp.MustCompile(`--ar (\d+:\d+)`)

type Action string

const (
	ActionImage Action = "image"
	ActionVideo Action = "video"
	ActionQuery Action = "query"
	ActionHelp  Action = "help"
)

// Triggers are the phrases that start each command.
type Triggers struct {
	Image string
	Video string
	Query string
}

// Command is a recognized message.
type Command struct {
	Action Action
	Prompt string
}

// Parse matches content against the trigger prefixes in image, video, query
// order. Messages without a trigger are not for us. A generation trigger
// with no prompt, or "help" as the prompt, asks for help.
func Parse(content string, t Triggers) (Command, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Command{}, false
	}

	switch {
	case t.Image != "" && strings.HasPrefix(content, t.Image):
		return generation(ActionImage, strings.TrimPrefix(content, t.Image)), true
	case t.Video != "" && strings.HasPrefix(content, t.Video):
		return generation(ActionVideo, strings.TrimPrefix(content, t.Video)), true
	case t.Query != "" && strings.HasPrefix(content, t.Query):
		return Command{Action: ActionQuery}, true
	}
	return Command{}, false
}

func generation(action Action, rest string) Command {
	prompt := strings.TrimSpace(rest)
	if prompt == "" || strings.EqualFold(prompt, "help") {
		return Command{Action: ActionHelp}
	}
	return Command{Action: action, Prompt: prompt}
}

// ExtractSize finds a "--ar W:H" token, maps it to pixel dimensions and
// returns the prompt with every such token removed.
func ExtractSize(prompt string) (size, cleaned string) {
	match := aspectRatioPattern.FindStringSubmatch(prompt)
	if match == nil {
		return DefaultSize, prompt
	}

	size, ok := ratioSizes[match[1]]
	if !ok {
		size = DefaultSize
	}
	cleaned = strings.TrimSpace(aspectRatioPattern.ReplaceAllString(prompt, ""))
	return size, cleaned
}

// HelpText describes the available commands.
func HelpText(t Triggers) string {
	var b strings.Builder
	b.WriteString("Usage:\n")
	fmt.Fprintf(&b, "1. Generate an image: \"%s <description>\", e.g. \"%s a cute cat\"\n", t.Image, t.Image)
	fmt.Fprintf(&b, "   Add --ar W:H to choose the aspect ratio. Supported: %s\n", strings.Join(SupportedRatios, ", "))
	fmt.Fprintf(&b, "   Example: \"%s a beautiful landscape --ar 16:9\"\n", t.Image)
	fmt.Fprintf(&b, "2. Generate a video: \"%s <description>\", e.g. \"%s a girl running in a park\"\n", t.Video, t.Video)
	fmt.Fprintf(&b, "3. Check video progress: \"%s\"\n", t.Query)
	return b.String()
}
