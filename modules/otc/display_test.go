package otc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokendesk/otc-desk/common"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
)

func TestSanitizeForBuyer(t *testing.T) {
	t.Run("negotiable shows the worst-case pair only", func(t *testing.T) {
		c := negotiableCandidate("a", 1000)
		c.ConsignerAddress = "0xseller"
		c.AllowedBuyers = []string{"0xbuyer"}

		view := SanitizeForBuyer(&c)
		assert.Equal(t, uint16(100), view.DisplayDiscountBps)
		assert.Equal(t, uint32(90), view.DisplayLockupDays)
	})

	t.Run("fixed shows the actual terms", func(t *testing.T) {
		c := fixedCandidate("f", 500, 30)

		view := SanitizeForBuyer(&c)
		assert.Equal(t, uint16(500), view.DisplayDiscountBps)
		assert.Equal(t, uint32(30), view.DisplayLockupDays)
	})

	t.Run("serialized view carries no seller identity or range", func(t *testing.T) {
		c := negotiableCandidate("a", 1000)
		c.ConsignerAddress = "0xseller0000000000000000000000000000000001"
		c.AllowedBuyers = []string{"0xbuyer00000000000000000000000000000000002"}

		raw, err := json.Marshal(SanitizeForBuyer(&c))
		require.NoError(t, err)

		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &fields))
		for _, forbidden := range []string{
			"consignerAddress", "allowedBuyers",
			"maxDiscountBps", "minLockupDays",
			"minDiscountBps", "maxLockupDays",
		} {
			assert.NotContains(t, fields, forbidden)
		}
		assert.NotContains(t, string(raw), c.ConsignerAddress)
		assert.NotContains(t, string(raw), c.AllowedBuyers[0])
	})
}

func TestIsConsignmentOwner(t *testing.T) {
	test := func(name string, chain common.Chain, stored, caller string, expected bool) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c := entity.Consignment{Chain: chain, ConsignerAddress: stored}
			assert.Equal(t, expected, IsConsignmentOwner(&c, caller))
		})
	}

	test("exact match", common.ChainEthereum, "0xabc", "0xabc", true)
	test("case-insensitive chain ignores case", common.ChainEthereum, "0xabc", "0xABC", true)
	test("case-sensitive chain requires exact case", common.ChainSolana, "SoLAddr", "soladdr", false)
	test("different address", common.ChainEthereum, "0xabc", "0xdef", false)
	test("absent caller never matches", common.ChainEthereum, "0xabc", "", false)
}
