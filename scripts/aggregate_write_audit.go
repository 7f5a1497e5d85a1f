// Command aggregate_write_audit reports how internal/services mutates channel
// state. Channel, member, settings, message and event rows may only be written
// by the aggregates; any direct repo write from a service is a violation and
// makes the command exit non-zero.
package main

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type fieldKind int

const (
	kindOther fieldKind = iota
	kindRepo
	kindAggregate
	kindLocal
)

type fieldInfo struct {
	Kind fieldKind
	Type string
}

// structIndex maps struct name -> field name -> field type.
type structIndex map[string]map[string]fieldInfo

type callsite struct {
	Struct string `json:"struct"`
	Method string `json:"method"`
	File   string `json:"file"`
	Line   int    `json:"line"`
	Call   string `json:"call"`
	Type   string `json:"type"`
}

type auditReport struct {
	GuardedRepoWrites   []callsite `json:"guarded_repo_writes"`
	OtherRepoWrites     []callsite `json:"other_repo_writes"`
	AggregateCalls      []callsite `json:"aggregate_calls"`
	ServicesWithGuarded []string   `json:"services_with_guarded_repo_fields"`
}

var guardedRepos = map[string]bool{
	"ChannelRepo":  true,
	"MemberRepo":   true,
	"MessageRepo":  true,
	"EventRepo":    true,
	"SettingsRepo": true,
}

var repoWriteMethods = map[string]bool{
	"Create":           true,
	"Append":           true,
	"Add":              true,
	"Remove":           true,
	"Update":           true,
	"UpdateFields":     true,
	"Delete":           true,
	"DeleteByChannel":  true,
	"BumpLastActivity": true,
	"LockByID":         true,
	"GetOrCreate":      true,
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	report, err := audit(root)
	if err != nil {
		exitf("audit: %v", err)
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))
	if len(report.GuardedRepoWrites) > 0 {
		exitf("%d service callsites write channel state without an aggregate", len(report.GuardedRepoWrites))
	}
}

func audit(root string) (auditReport, error) {
	servicesDir := filepath.Join(root, "internal", "services")
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, servicesDir, func(fi os.FileInfo) bool {
		name := fi.Name()
		return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
	}, 0)
	if err != nil {
		return auditReport{}, fmt.Errorf("parse dir: %w", err)
	}
	pkg, ok := pkgs["services"]
	if !ok {
		return auditReport{}, fmt.Errorf("services package not found in %s", servicesDir)
	}

	idx := structIndex{}
	for _, f := range pkg.Files {
		indexStructs(f, idx)
	}

	var report auditReport
	for path, f := range pkg.Files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		collectCalls(fset, f, filepath.ToSlash(rel), idx, &report)
	}

	for _, list := range [][]callsite{report.GuardedRepoWrites, report.OtherRepoWrites, report.AggregateCalls} {
		sortCallsites(list)
	}
	report.ServicesWithGuarded = guardedHolders(idx)
	return report, nil
}

func indexStructs(file *ast.File, idx structIndex) {
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok || st.Fields == nil {
				continue
			}
			fields := map[string]fieldInfo{}
			for _, field := range st.Fields.List {
				info := classify(field.Type)
				if info.Kind == kindOther {
					continue
				}
				for _, name := range field.Names {
					fields[name.Name] = info
				}
			}
			idx[ts.Name.Name] = fields
		}
	}
}

func classify(expr ast.Expr) fieldInfo {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return classify(t.X)
	case *ast.Ident:
		return fieldInfo{Kind: kindLocal, Type: t.Name}
	case *ast.SelectorExpr:
		pkgIdent, ok := t.X.(*ast.Ident)
		if !ok {
			return fieldInfo{}
		}
		name := t.Sel.Name
		switch {
		case pkgIdent.Name == "repos" && strings.HasSuffix(name, "Repo"):
			return fieldInfo{Kind: kindRepo, Type: name}
		case pkgIdent.Name == "domainagg" && strings.HasSuffix(name, "Aggregate"):
			return fieldInfo{Kind: kindAggregate, Type: name}
		}
	}
	return fieldInfo{}
}

func collectCalls(fset *token.FileSet, file *ast.File, relFile string, idx structIndex, report *auditReport) {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || fd.Body == nil || len(fd.Recv.List) == 0 {
			continue
		}
		recvName, recvType := recvInfo(fd.Recv.List[0])
		if _, ok := idx[recvType]; !ok || recvName == "" {
			continue
		}
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			chain, ok := selectorChain(call.Fun, recvName)
			if !ok || len(chain) < 2 {
				return true
			}
			info, ok := resolve(idx, recvType, chain[:len(chain)-1])
			if !ok {
				return true
			}
			method := chain[len(chain)-1]
			site := callsite{
				Struct: recvType,
				Method: fd.Name.Name,
				File:   relFile,
				Line:   fset.Position(call.Pos()).Line,
				Call:   strings.Join(chain, "."),
				Type:   info.Type,
			}
			switch {
			case info.Kind == kindAggregate && method != "Contract":
				report.AggregateCalls = append(report.AggregateCalls, site)
			case info.Kind == kindRepo && repoWriteMethods[method] && guardedRepos[info.Type]:
				report.GuardedRepoWrites = append(report.GuardedRepoWrites, site)
			case info.Kind == kindRepo && repoWriteMethods[method]:
				report.OtherRepoWrites = append(report.OtherRepoWrites, site)
			}
			return true
		})
	}
}

// selectorChain flattens recv.a.b.M into [a b M].
func selectorChain(expr ast.Expr, recvName string) ([]string, bool) {
	var rev []string
	for {
		switch t := expr.(type) {
		case *ast.SelectorExpr:
			rev = append(rev, t.Sel.Name)
			expr = t.X
		case *ast.Ident:
			if t.Name != recvName {
				return nil, false
			}
			out := make([]string, len(rev))
			for i, s := range rev {
				out[len(rev)-1-i] = s
			}
			return out, true
		default:
			return nil, false
		}
	}
}

// resolve follows fields through locally declared structs down to the repo or
// aggregate the call lands on.
func resolve(idx structIndex, structName string, fields []string) (fieldInfo, bool) {
	cur := structName
	for i, name := range fields {
		info, ok := idx[cur][name]
		if !ok {
			return fieldInfo{}, false
		}
		last := i == len(fields)-1
		switch info.Kind {
		case kindLocal:
			if last {
				return fieldInfo{}, false
			}
			cur = info.Type
		case kindRepo, kindAggregate:
			return info, last
		default:
			return fieldInfo{}, false
		}
	}
	return fieldInfo{}, false
}

func guardedHolders(idx structIndex) []string {
	var out []string
	for name, fields := range idx {
		for _, f := range fields {
			if f.Kind == kindRepo && guardedRepos[f.Type] {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func recvInfo(field *ast.Field) (string, string) {
	if field == nil || len(field.Names) == 0 {
		return "", ""
	}
	recvName := field.Names[0].Name
	switch t := field.Type.(type) {
	case *ast.StarExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return recvName, id.Name
		}
	case *ast.Ident:
		return recvName, t.Name
	}
	return "", ""
}

func sortCallsites(list []callsite) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].File == list[j].File {
			return list[i].Line < list[j].Line
		}
		return list[i].File < list[j].File
	})
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
