package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from PurchaseRequestStatus
		to   PurchaseRequestStatus
		want bool
	}{
		{"pending→contacted", PurchaseRequestPending, PurchaseRequestContacted, true},
		{"pending→approved", PurchaseRequestPending, PurchaseRequestApproved, true},
		{"pending→rejected", PurchaseRequestPending, PurchaseRequestRejected, true},
		{"contacted→approved", PurchaseRequestContacted, PurchaseRequestApproved, true},
		{"contacted→rejected", PurchaseRequestContacted, PurchaseRequestRejected, true},
		{"contacted→pending", PurchaseRequestContacted, PurchaseRequestPending, false},
		{"contacted→contacted", PurchaseRequestContacted, PurchaseRequestContacted, false},
		{"pending→pending", PurchaseRequestPending, PurchaseRequestPending, false},
		{"未知状态", PurchaseRequestStatus("shipped"), PurchaseRequestApproved, false},
		{"流向未知状态", PurchaseRequestPending, PurchaseRequestStatus("shipped"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestTerminalStatesAreFrozen(t *testing.T) {
	// 终态出度恒为零
	all := []PurchaseRequestStatus{
		PurchaseRequestPending, PurchaseRequestContacted,
		PurchaseRequestApproved, PurchaseRequestRejected,
	}
	for _, from := range []PurchaseRequestStatus{PurchaseRequestApproved, PurchaseRequestRejected} {
		for _, to := range all {
			require.False(t, CanTransition(from, to), "%s → %s 不应可达", from, to)
		}
	}
}

func TestCanUploadConfirmation(t *testing.T) {
	require.True(t, CanUploadConfirmation(PurchaseRequestPending))
	require.True(t, CanUploadConfirmation(PurchaseRequestContacted))
	require.False(t, CanUploadConfirmation(PurchaseRequestApproved))
	require.False(t, CanUploadConfirmation(PurchaseRequestRejected))
	require.False(t, CanUploadConfirmation(PurchaseRequestStatus("")))
}

func TestRenderDeepLink(t *testing.T) {
	w := WalletConfig{DeepLinkTemplate: "wallet://pay?amount={amount}&ref={reference}"}
	require.Equal(t, "wallet://pay?amount=25.90&ref=pr-1", w.RenderDeepLink(2590, "pr-1"))

	// 模板为空时不渲染
	require.Equal(t, "", WalletConfig{}.RenderDeepLink(100, "x"))
}
