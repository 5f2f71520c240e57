package group

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRandScalarInRange(t *testing.T) {
	c := qt.New(t)
	for i := 0; i < 50; i++ {
		s, err := RandScalar()
		c.Assert(err, qt.IsNil)
		c.Assert(s.Sign() > 0, qt.IsTrue)
		c.Assert(s.Cmp(Q) < 0, qt.IsTrue)
	}
}

func TestGeneratorOrder(t *testing.T) {
	c := qt.New(t)
	c.Assert(ModExp(G, Q).Cmp(big.NewInt(1)), qt.Equals, 0)
}

func TestModExpAndModInv(t *testing.T) {
	c := qt.New(t)
	x := ModExp(G, big.NewInt(7))
	inv := ModInv(x)
	c.Assert(Mul(x, inv).Cmp(big.NewInt(1)), qt.Equals, 0)
}

func TestScalarArithmeticWraps(t *testing.T) {
	c := qt.New(t)
	a := new(big.Int).Sub(Q, big.NewInt(1))
	b := big.NewInt(2)
	sum := ScalarAdd(a, b)
	c.Assert(sum.Cmp(big.NewInt(1)), qt.Equals, 0)

	diff := ScalarSub(big.NewInt(1), big.NewInt(2))
	c.Assert(diff.Sign() >= 0, qt.IsTrue)
	c.Assert(diff.Cmp(Q) < 0, qt.IsTrue)
	c.Assert(ScalarAdd(diff, big.NewInt(2)).Cmp(big.NewInt(1)), qt.Equals, 0)
}

func TestIsElementAndIsScalar(t *testing.T) {
	c := qt.New(t)
	c.Assert(IsElement(G), qt.IsTrue)
	c.Assert(IsElement(big.NewInt(0)), qt.IsFalse)
	c.Assert(IsElement(P), qt.IsFalse)
	// a random quadratic non-residue won't be in the order-Q subgroup
	notInGroup := new(big.Int).Add(G, big.NewInt(1))
	if ModExp(notInGroup, Q).Cmp(big.NewInt(1)) != 0 {
		c.Assert(IsElement(notInGroup), qt.IsFalse)
	}

	c.Assert(IsScalar(big.NewInt(0)), qt.IsTrue)
	c.Assert(IsScalar(new(big.Int).Sub(Q, big.NewInt(1))), qt.IsTrue)
	c.Assert(IsScalar(Q), qt.IsFalse)
	c.Assert(IsScalar(big.NewInt(-1)), qt.IsFalse)
}

func TestHashToScalarDeterministicAndInRange(t *testing.T) {
	c := qt.New(t)
	a := big.NewInt(42)
	b := big.NewInt(43)
	h1 := HashToScalar(a, b)
	h2 := HashToScalar(a, b)
	c.Assert(h1.Cmp(h2), qt.Equals, 0)
	c.Assert(h1.Cmp(Q) < 0, qt.IsTrue)
	c.Assert(h1.Sign() >= 0, qt.IsTrue)

	h3 := HashToScalar(b, a)
	c.Assert(h1.Cmp(h3) != 0, qt.IsTrue)
}
