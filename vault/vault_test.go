package vault_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nmpsim/vault"
)

func TestVault(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Vault Suite")
}

var _ = Describe("Mapper", func() {
	It("stays within [0, vaultCount) for any address", func() {
		geom := vault.DefaultGeometry(16, 6)
		m := vault.NewMapper(16, geom)

		for _, addr := range []uint64{0, 1, 0x1000, 0xABCDEF, 0xFFFFFFFFFFFF} {
			idx := m.VaultIndex(addr)
			Expect(idx).To(BeNumerically(">=", 0))
			Expect(idx).To(BeNumerically("<", 16))
		}
	})

	It("is deterministic for the same address", func() {
		geom := vault.DefaultGeometry(8, 6)
		m := vault.NewMapper(8, geom)
		a := m.VaultIndex(0x123456)
		b := m.VaultIndex(0x123456)
		Expect(a).To(Equal(b))
	})
})
