package labels

import (
	"testing"

	"go.uber.org/zap"
)

func TestNew_EmbeddedDictionaries(t *testing.T) {
	p, err := New("en", zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := p.Locales(); len(got) != 2 || got[0] != "en" || got[1] != "ko" {
		t.Fatalf("Locales() = %v, want [en ko]", got)
	}

	keys := []string{
		"stat.confirmed", "stat.confirmed_critical", "stat.deceased", "stat.tested",
		"chart.option.live", "chart.option.daily", "chart.option.monthly", "chart.option.accumulated",
		"chart.option.one_week", "chart.option.one_month", "chart.option.three_months", "chart.option.all",
		"chart.option.yesterday", "chart.option.one_week_ago", "chart.option.two_weeks_ago", "chart.option.four_weeks_ago",
		"live.today", "source.kdca",
	}
	for _, loc := range p.Locales() {
		tr := p.For(loc)
		for _, k := range keys {
			if tr(k) == k {
				t.Errorf("%s: missing translation for %q", loc, k)
			}
		}
	}
}

func TestNew_UnknownDefault(t *testing.T) {
	if _, err := New("fr", zap.NewNop()); err == nil {
		t.Error("expected error for default locale without dictionary")
	}
}

func TestMatch(t *testing.T) {
	p, err := FromDictionaries("en", map[string]map[string]string{
		"en": {"k": "en"},
		"ko": {"k": "ko"},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("FromDictionaries() error: %v", err)
	}

	tests := []struct {
		name     string
		explicit string
		accept   string
		want     string
	}{
		{name: "nothing", want: "en"},
		{name: "explicit", explicit: "ko", want: "ko"},
		{name: "explicit regional", explicit: "ko-KR", want: "ko"},
		{name: "accept header", accept: "ko-KR,ko;q=0.9,en;q=0.8", want: "ko"},
		{name: "explicit beats header", explicit: "en", accept: "ko", want: "en"},
		{name: "unsupported", accept: "fr-FR", want: "en"},
		{name: "malformed", explicit: "!!", accept: "???", want: "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Match(tt.explicit, tt.accept); got != tt.want {
				t.Errorf("Match(%q, %q) = %q, want %q", tt.explicit, tt.accept, got, tt.want)
			}
		})
	}
}

func TestFor_Fallbacks(t *testing.T) {
	p, err := FromDictionaries("en", map[string]map[string]string{
		"en": {"a": "A", "b": "<b>B</b>"},
		"ko": {"a": "가"},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("FromDictionaries() error: %v", err)
	}

	ko := p.For("ko")
	if ko("a") != "가" {
		t.Errorf("ko a = %q", ko("a"))
	}
	if ko("b") != "B" {
		t.Errorf("ko b = %q, want default dictionary value without markup", ko("b"))
	}
	if ko("missing") != "missing" {
		t.Errorf("missing key = %q, want key", ko("missing"))
	}
	if p.For("de")("a") != "A" {
		t.Error("unknown locale should use default dictionary")
	}
}
