package review

import "testing"

func TestProgrammingLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"cmd/gavel/main.go", "Go"},
		{"scripts/build.PY", "Python"},
		{"web/app.tsx", "TypeScript/React"},
		{"README.md", "Markdown"},
		{"Makefile", ""},
	}
	for _, tt := range tests {
		if got := ProgrammingLanguage(tt.path); got != tt.want {
			t.Errorf("ProgrammingLanguage(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDetectNaturalLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "Fixes a race condition in the worker pool.", "English"},
		{"empty", "", "English"},
		{"numbers only", "12345 --- !!!", "English"},
		{"japanese", "ワーカープールの競合状態を修正します。", "Japanese"},
		{"chinese", "修复工作池中的竞态条件。", "Chinese"},
		{"korean", "작업자 풀의 경쟁 조건을 수정합니다.", "Korean"},
		{"russian", "Исправляет состояние гонки в пуле воркеров.", "Russian"},
		{"mostly english with a word of han", "Fixes the worker pool race condition (见下文 for details in the attached doc).", "English"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectNaturalLanguage(tt.text); got != tt.want {
				t.Errorf("DetectNaturalLanguage(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
