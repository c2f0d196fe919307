package view

import (
	"fmt"
	"html/template"
)

// Level — уровень alert-сообщения.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// Feedback — временное сообщение пользователю о результате действия.
type Feedback struct {
	Level   Level         `json:"level"`
	Message template.HTML `json:"message"`
}

// Feedbackf форматирует сообщение; аргументы экранируются, разметка формата сохраняется.
func Feedbackf(level Level, format string, args ...any) *Feedback {
	escaped := make([]any, len(args))
	for i, arg := range args {
		escaped[i] = template.HTMLEscapeString(fmt.Sprint(arg))
	}
	return &Feedback{
		Level:   level,
		Message: template.HTML(fmt.Sprintf(format, escaped...)), //nolint:gosec // format константный, аргументы экранированы
	}
}
