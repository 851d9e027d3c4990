// Package jsonsafe decides whether a produced value can be written as a
// JSON artifact, and writes it.
//
// Values coming from a script runtime are converted to Go trees first.
// Plain objects become *Object so key order survives; things JSON cannot
// represent become markers (Function, Instance, Symbol, Undefined,
// *big.Int) that Check rejects with a locator such as "$.items[2].when".
package jsonsafe
