// Package mutation implements the numeric mutation sub-language: a small
// composable arithmetic/conditional program evaluated atomically against
// a stored integer register.
package mutation

import (
	"math"

	"github.com/gravitational/trace"
)

// ErrInvalidNumber is returned when evaluating a Program overflows,
// divides by zero, or otherwise cannot produce a defined integer result.
// Per the mutation contract, failure aborts the whole program and leaves
// the register's previous value in effect.
var ErrInvalidNumber = trace.BadParameter("invalid number: overflow, underflow or division by zero")

// Ordering is the comparison result an If/IfElse action tests for.
type Ordering int

const (
	Less Ordering = iota
	Equal
	Greater
)

// Action is one primitive step of a mutation Program. Concrete Actions are
// Set, Incr, Decr, Mul, Div, If and IfElse.
type Action interface {
	apply(r int64) (int64, error)
}

// Program is an ordered, nestable sequence of Actions evaluated against a
// single integer register.
type Program []Action

// Eval is the pure reference interpreter: it runs p against the initial
// register value r and returns the final register value, or ErrInvalidNumber
// if any step fails. On error the returned int64 is meaningless; callers
// must discard it and leave the previously-stored value untouched.
func Eval(r int64, p Program) (int64, error) {
	for _, a := range p {
		next, err := a.apply(r)
		if err != nil {
			return 0, trace.Wrap(err)
		}
		r = next
	}
	return r, nil
}

type setAction struct{ n int64 }

// Set returns an Action that unconditionally assigns n to the register.
func Set(n int64) Action { return setAction{n} }

func (a setAction) apply(int64) (int64, error) { return a.n, nil }

type incrAction struct{ n int64 }

// Incr returns an Action that adds n to the register; overflow aborts
// the program.
func Incr(n int64) Action { return incrAction{n} }

func (a incrAction) apply(r int64) (int64, error) {
	sum := r + a.n
	if (a.n > 0 && sum < r) || (a.n < 0 && sum > r) {
		return 0, trace.Wrap(ErrInvalidNumber, "incr(%d) overflows %d", a.n, r)
	}
	return sum, nil
}

type decrAction struct{ n int64 }

// Decr returns an Action that subtracts n from the register; underflow
// aborts the program.
func Decr(n int64) Action { return decrAction{n} }

func (a decrAction) apply(r int64) (int64, error) {
	diff := r - a.n
	if (a.n < 0 && diff < r) || (a.n > 0 && diff > r) {
		return 0, trace.Wrap(ErrInvalidNumber, "decr(%d) underflows %d", a.n, r)
	}
	return diff, nil
}

type mulAction struct{ n int64 }

// Mul returns an Action that multiplies the register by n; overflow
// aborts the program.
func Mul(n int64) Action { return mulAction{n} }

func (a mulAction) apply(r int64) (int64, error) {
	if r == 0 || a.n == 0 {
		return 0, nil
	}
	// r == math.MinInt64 && a.n == -1 is the one case the division
	// round-trip below can't catch: both the multiply and the divide
	// wrap back to MinInt64 in two's complement, so product/a.n == r
	// holds despite the true product being unrepresentable.
	if a.n == -1 && r == math.MinInt64 {
		return 0, trace.Wrap(ErrInvalidNumber, "mul(%d) overflows %d", a.n, r)
	}
	product := r * a.n
	if product/a.n != r {
		return 0, trace.Wrap(ErrInvalidNumber, "mul(%d) overflows %d", a.n, r)
	}
	return product, nil
}

type divAction struct{ n int64 }

// Div returns an Action that divides the register by n; n == 0 aborts
// the program.
func Div(n int64) Action { return divAction{n} }

func (a divAction) apply(r int64) (int64, error) {
	if a.n == 0 {
		return 0, trace.Wrap(ErrInvalidNumber, "division by zero")
	}
	return r / a.n, nil
}

type ifAction struct {
	ord Ordering
	n   int64
	sub Program
}

// If returns an Action that runs sub against the register when comparing
// the register to n yields ord; otherwise the register is unchanged.
func If(ord Ordering, n int64, sub Program) Action {
	return ifAction{ord: ord, n: n, sub: sub}
}

func (a ifAction) apply(r int64) (int64, error) {
	if compare(r, a.n) == a.ord {
		return Eval(r, a.sub)
	}
	return r, nil
}

type ifElseAction struct {
	ord        Ordering
	n          int64
	sub, other Program
}

// IfElse returns an Action that runs sub when comparing the register to n
// yields ord, and other otherwise.
func IfElse(ord Ordering, n int64, sub, other Program) Action {
	return ifElseAction{ord: ord, n: n, sub: sub, other: other}
}

func (a ifElseAction) apply(r int64) (int64, error) {
	if compare(r, a.n) == a.ord {
		return Eval(r, a.sub)
	}
	return Eval(r, a.other)
}

func compare(r, n int64) Ordering {
	switch {
	case r < n:
		return Less
	case r > n:
		return Greater
	default:
		return Equal
	}
}
