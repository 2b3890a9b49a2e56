package importer

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/package-url/packageurl-go"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
)

type RewriterEnv struct {
	Name          string `expr:"name"`
	Version       string `expr:"version"`
	Purl          string `expr:"purl"`
	PurlType      string `expr:"purl_type"`
	PurlNamespace string `expr:"purl_namespace"`
	PurlName      string `expr:"purl_name"`
}

func newRewriterEnv(coord deppkg.PackageCoordinate) RewriterEnv {
	env := RewriterEnv{
		Name:    coord.PackageName,
		Version: coord.PackageVersion,
		Purl:    coord.Purl,
	}
	if coord.Purl != "" {
		if purl, err := packageurl.FromString(coord.Purl); err == nil {
			env.PurlType = purl.Type
			env.PurlNamespace = purl.Namespace
			env.PurlName = purl.Name
		}
	}
	return env
}

type compiledRewriter struct {
	Predicate   *vm.Program
	RewriteRule *vm.Program
	Field       string
}

func NewCompiledRewriter(r deppkg.Rewriter) (cr compiledRewriter, err error) {
	genericOpts := []expr.Option{
		expr.Env(RewriterEnv{}),
		expr.Function(
			"fmt",
			exprFmt,
			new(func(string, string) string),
			new(func([]any, string) string),
		),
	}

	switch r.Field {
	case "":
		cr.Field = "name"
	case "name", "version", "purl":
		cr.Field = r.Field
	default:
		return cr, fmt.Errorf("unsupported rewrite field %q", r.Field)
	}

	predicateOpts := append(genericOpts,
		expr.AsBool(),
	)
	cr.Predicate, err = expr.Compile(r.Predicate, predicateOpts...)
	if err != nil {
		return cr, fmt.Errorf("error compiling predicate: %w", err)
	}

	rewriterOpts := append(genericOpts,
		expr.AsKind(reflect.String),
	)
	cr.RewriteRule, err = expr.Compile(r.RewriteRule, rewriterOpts...)
	if err != nil {
		return cr, fmt.Errorf("error compiling rewrite rule: %w", err)
	}

	return cr, err
}

// CompileRewriters compiles every configured rewriter, in order.
func CompileRewriters(rewriters []deppkg.Rewriter) ([]compiledRewriter, error) {
	compiled := make([]compiledRewriter, 0, len(rewriters))
	for i, rewriter := range rewriters {
		cr, err := NewCompiledRewriter(rewriter)
		if err != nil {
			return nil, fmt.Errorf("could not parse rewrite rule %d, %w", i+1, err)
		}
		compiled = append(compiled, cr)
	}
	return compiled, nil
}

func (c compiledRewriter) Rewrite(coord deppkg.PackageCoordinate) deppkg.PackageCoordinate {
	env := newRewriterEnv(coord)
	predicate, err := expr.Run(c.Predicate, env)
	if err != nil || !predicate.(bool) {
		return coord
	}
	result, err := expr.Run(c.RewriteRule, env)
	if err != nil {
		return coord
	}
	resultStr := result.(string)
	switch c.Field {
	case "name":
		coord.PackageName = resultStr
	case "version":
		coord.PackageVersion = resultStr
	case "purl":
		coord.Purl = resultStr
	}

	return coord
}

// exprFmt is an implementation of sprintf for expr. It takes the thing to be
// formatted as the first argument to make it possible to use with pipes. The
// first argument can either be a string, or a list of any value.
func exprFmt(params ...any) (any, error) {
	switch arg1 := params[0].(type) {
	case string:
		return fmt.Sprintf(params[1].(string), arg1), nil
	case []any:
		return fmt.Sprintf(params[1].(string), arg1...), nil
	default:
		return "", fmt.Errorf("unsupported type for argument 1: %T", arg1)
	}
}
