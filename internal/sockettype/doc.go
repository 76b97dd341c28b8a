// Package sockettype is the registry of socket value domains.
//
// # Why Socket Types Exist
//
// Every socket in a node tree carries a type identifier ("float", "color",
// "factor", ...). The identifier selects a value domain (a Kind) and a
// default value. Links between sockets are only legal when the two types
// are compatible: identical, sharing a Kind, one side virtual, or joined by
// an entry of the implicit conversion table.
//
// # Values
//
// Socket values are cty.Value so that they round-trip through HCL documents
// without a bespoke encoding:
//
//	Bool   -> cty.Bool
//	Int    -> cty.Number (integral)
//	Float  -> cty.Number
//	Vector -> tuple of three numbers
//	Color  -> tuple of four numbers (RGBA)
//	String -> cty.String
//	Shader -> capsule wrapping *Closure
//	Virtual-> dynamic
//
// # Lifecycle
//
//  1. **Creation:** NewRegistry with a conversion table (DefaultConversions
//     unless the caller swaps in its own policy).
//  2. **Population:** RegisterBuiltins plus any module or catalog types.
//  3. **Seal:** the app seals the registry once startup is done. From then on
//     it is read-only and safe for concurrent use.
package sockettype
