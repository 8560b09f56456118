//go:build !race

package signup

const passwordHashCost = 14
