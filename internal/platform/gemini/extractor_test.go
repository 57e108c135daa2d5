package gemini

import (
	"testing"

	"github.com/menulens/menulens-api/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraction(t *testing.T) {
	t.Parallel()

	t.Run("full response", func(t *testing.T) {
		t.Parallel()

		body := `{
			"restaurantName": "Trattoria Roma",
			"sections": [
				{"name": "Antipasti", "items": [
					{"name": "Bruschetta", "description": "Grilled bread, tomato", "price": "$8"},
					{"name": "Caprese"}
				]},
				{"name": "Primi", "items": [{"name": "Cacio e Pepe", "price": "$18"}]}
			],
			"itemsFallback": [{"name": "Tiramisu"}]
		}`

		extraction, err := parseExtraction([]byte(body))
		require.NoError(t, err)

		assert.Equal(t, "Trattoria Roma", extraction.RestaurantName)
		require.Len(t, extraction.Sections, 2)
		assert.Equal(t, "Antipasti", extraction.Sections[0].Name)
		assert.Len(t, extraction.Sections[0].Items, 2)
		assert.Equal(t, "Grilled bread, tomato", extraction.Sections[0].Items[0].Description)
		require.Len(t, extraction.ItemsFallback, 1)
		assert.Equal(t, "Tiramisu", extraction.ItemsFallback[0].Name)
	})

	t.Run("absent sections default to empty", func(t *testing.T) {
		t.Parallel()

		extraction, err := parseExtraction([]byte(`{"restaurantName": "Cafe"}`))
		require.NoError(t, err)

		assert.NotNil(t, extraction.Sections)
		assert.Empty(t, extraction.Sections)
	})

	t.Run("unparseable body fails the pipeline", func(t *testing.T) {
		t.Parallel()

		_, err := parseExtraction([]byte("I could not read this menu, sorry!"))
		assert.ErrorIs(t, err, provider.ErrInvalidResponse)
	})
}
