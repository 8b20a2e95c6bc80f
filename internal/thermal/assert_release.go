//go:build !thermaldebug

package thermal

const strictContracts = false
