package domain

import (
	"strings"
	"testing"
)

func TestFrequencyFor(t *testing.T) {
	cases := []struct {
		orders int
		want   Frequency
	}{
		{0, FrequencyNew},
		{2, FrequencyNew},
		{3, FrequencyOccasional},
		{9, FrequencyOccasional},
		{10, FrequencyRegular},
		{19, FrequencyRegular},
		{20, FrequencyVIP},
		{25, FrequencyVIP},
	}
	for _, tc := range cases {
		if got := FrequencyFor(tc.orders); got != tc.want {
			t.Errorf("FrequencyFor(%d) = %q, ожидалось %q", tc.orders, got, tc.want)
		}
	}
}

func TestSegmentationRulesReturnsCopy(t *testing.T) {
	rules := SegmentationRules()
	if len(rules) == 0 {
		t.Fatal("список правил пуст")
	}
	rules[0].ID = "испорчено"
	rules[0].Weight = 99

	fresh := SegmentationRules()
	if fresh[0].ID != DefaultSegmentID {
		t.Fatalf("мутация копии затронула конфигурацию: %q", fresh[0].ID)
	}
}

func TestDefaultSegmentationRule(t *testing.T) {
	rule := DefaultSegmentationRule()
	if rule.ID != DefaultSegmentID {
		t.Fatalf("правило по умолчанию %q, ожидалось %q", rule.ID, DefaultSegmentID)
	}
}

func TestGreetingForKnownSegment(t *testing.T) {
	msg := GreetingFor("Clients VIP", "Marie")
	if !strings.Contains(msg, "Marie") {
		t.Fatalf("имя не подставлено: %q", msg)
	}
	if strings.Contains(msg, "{first_name}") {
		t.Fatalf("плейсхолдер остался в сообщении: %q", msg)
	}
}

func TestGreetingForUnknownSegment(t *testing.T) {
	msg := GreetingFor("Segment inconnu", "Paul")
	if !strings.Contains(msg, "Paul") {
		t.Fatalf("общий шаблон не подставил имя: %q", msg)
	}
	if msg != "Bonjour Paul, merci pour votre fidélité !" {
		t.Fatalf("неожиданный общий шаблон: %q", msg)
	}
}
