package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplate_Render(t *testing.T) {
	target := Target{ID: "c1", Name: "Sara", Phone: "01012345678"}

	t.Run("contact placeholders", func(t *testing.T) {
		tpl := Template("Hello {name}, we will call you on {phone}.")
		got := tpl.Render(target, nil)
		assert.Equal(t, "Hello Sara, we will call you on 01012345678.", got)
	})

	t.Run("custom variables", func(t *testing.T) {
		tpl := Template("Hi {name}, join us on {date} at {location}!")
		got := tpl.Render(target, map[string]string{
			"date":     "Friday",
			"location": "Cairo",
		})
		assert.Equal(t, "Hi Sara, join us on Friday at Cairo!", got)
	})

	t.Run("unknown placeholders stay put", func(t *testing.T) {
		tpl := Template("code: {promo}")
		assert.Equal(t, "code: {promo}", tpl.Render(target, nil))
	})

	t.Run("template is not mutated", func(t *testing.T) {
		tpl := Template("Hello {name}")
		_ = tpl.Render(target, nil)
		assert.Equal(t, Template("Hello {name}"), tpl)
	})

	t.Run("repeated placeholder", func(t *testing.T) {
		tpl := Template("{name} {name}")
		assert.Equal(t, "Sara Sara", tpl.Render(target, nil))
	})
}

func TestCampaignCreateRequest_Validate(t *testing.T) {
	targets := []Target{{ID: "1", Name: "a", Phone: "01012345678"}}

	assert.NoError(t, CampaignCreateRequest{Message: "hi", Targets: targets}.Validate())
	assert.ErrorIs(t, CampaignCreateRequest{Targets: targets}.Validate(), ErrEmptyMessage)
	assert.ErrorIs(t, CampaignCreateRequest{Message: "hi"}.Validate(), ErrNoTargets)
}

func TestCampaignStatus_Terminal(t *testing.T) {
	assert.True(t, CampaignStatusCompleted.Terminal())
	assert.True(t, CampaignStatusCancelled.Terminal())
	assert.False(t, CampaignStatusPending.Terminal())
	assert.False(t, CampaignStatusRunning.Terminal())
	assert.False(t, CampaignStatusPaused.Terminal())
}
