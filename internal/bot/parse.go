package bot

import (
	"fmt"
	"strconv"
	"strings"

	"campus_notify/internal/model"
)

// ParseFilterArgs parses arguments for /filter.
// Format: <min|-> <max|-> [categories,comma,separated|-] [condition]
func ParseFilterArgs(args string) (model.RecommendationFilter, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return model.RecommendationFilter{}, fmt.Errorf("usage: /filter <min|-> <max|-> [categories] [condition]")
	}

	var f model.RecommendationFilter
	var err error
	if f.MinPrice, err = parseBound(parts[0]); err != nil {
		return model.RecommendationFilter{}, err
	}
	if f.MaxPrice, err = parseBound(parts[1]); err != nil {
		return model.RecommendationFilter{}, err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return model.RecommendationFilter{}, fmt.Errorf("min price must not exceed max price")
	}

	if len(parts) > 2 && parts[2] != "-" {
		for _, c := range strings.Split(parts[2], ",") {
			if c = strings.TrimSpace(c); c != "" {
				f.Categories = append(f.Categories, c)
			}
		}
	}
	if len(parts) > 3 {
		f.Condition = strings.Join(parts[3:], " ")
	}
	return f, nil
}

func parseBound(s string) (*float64, error) {
	if s == "-" || strings.EqualFold(s, "any") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return &v, nil
}

// ParseDraftArgs parses arguments for /draft.
// Format: <title> | <price> [| description]
func ParseDraftArgs(args string) (model.DraftRecord, error) {
	parts := strings.SplitN(args, "|", 3)
	if len(parts) < 2 {
		return model.DraftRecord{}, fmt.Errorf("usage: /draft <title> | <price> [| description]")
	}
	d := model.DraftRecord{
		Title: strings.TrimSpace(parts[0]),
		Price: strings.TrimSpace(parts[1]),
	}
	if d.Title == "" {
		return model.DraftRecord{}, fmt.Errorf("title cannot be empty")
	}
	if len(parts) == 3 {
		d.Description = strings.TrimSpace(parts[2])
	}
	return d, nil
}

// ParseScreenArgs parses arguments for /open.
// Format: <home|compose|chat> [param]
func ParseScreenArgs(args string) (model.Screen, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return model.Screen{}, fmt.Errorf("usage: /open <home|compose|chat> [thread_id]")
	}
	s := model.Screen{Name: strings.ToLower(parts[0])}
	switch s.Name {
	case model.ScreenHome, model.ScreenCompose:
	case model.ScreenChat:
		if len(parts) < 2 {
			return model.Screen{}, fmt.Errorf("usage: /open chat <thread_id>")
		}
	default:
		return model.Screen{}, fmt.Errorf("unknown screen %q, use: home, compose, chat", parts[0])
	}
	if len(parts) > 1 {
		s.Param = parts[1]
	}
	return s, nil
}

// ParseIDArg extracts a single identifier from a command argument string.
func ParseIDArg(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", fmt.Errorf("ID is required")
	}
	return parts[0], nil
}

// ParseSignInArgs parses arguments for /signin.
// Format: <user_id> [display name...]
func ParseSignInArgs(args string) (string, string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", "", fmt.Errorf("user ID is required")
	}
	return parts[0], strings.Join(parts[1:], " "), nil
}
