package eval

import (
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// defaultFunctions is the baseline function table available to every module
// body. Embedders extend it with host functions via WithFunctions; host
// function calls are the observable side effects of running a module.
func defaultFunctions() map[string]function.Function {
	return map[string]function.Function{
		"upper":    stdlib.UpperFunc,
		"lower":    stdlib.LowerFunc,
		"format":   stdlib.FormatFunc,
		"strlen":   stdlib.StrlenFunc,
		"max":      stdlib.MaxFunc,
		"min":      stdlib.MinFunc,
		"coalesce": stdlib.CoalesceFunc,
	}
}
