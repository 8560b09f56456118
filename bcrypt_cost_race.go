//go:build race

package signup

import "golang.org/x/crypto/bcrypt"

// hashing at full cost under the race detector takes seconds per call
const passwordHashCost = bcrypt.MinCost
