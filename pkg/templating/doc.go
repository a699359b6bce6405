// Package templating implements dashboard template variable interpolation for
// query text.
//
// Three placeholder syntaxes are recognized, also mixed within one string:
//
//	$name
//	[[name]] or [[name:format]]
//	${name} or ${name:format}
//
// Resolution uses, in order, the per call ScopedVars, the system value table of
// the Interpolator and the variable Index snapshot built by the host. Names
// that resolve to nothing are left in the text unchanged.
package templating
