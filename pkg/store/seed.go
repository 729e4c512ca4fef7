package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/sneap/snipserve/pkg/snippet"
)

// Seed populates an empty store with the starter corpus. A store that
// already holds snippets is left untouched.
func (s *Store) Seed(ctx context.Context) error {
	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, snip := range seedSnippets {
		snip.Category = categorize(snip.Name)
		if _, err := s.Create(ctx, snip); err != nil {
			return fmt.Errorf("seed %q: %w", snip.Prefix, err)
		}
	}
	log.Debugf("seeded %d starter snippets", len(seedSnippets))
	return nil
}

func categorize(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "react") || strings.Contains(n, "component") || strings.Contains(n, "hook"):
		return "react"
	case strings.Contains(n, "async") || strings.Contains(n, "api") || strings.Contains(n, "fetch"):
		return "async"
	case strings.Contains(n, "test") || strings.Contains(n, "spec"):
		return "testing"
	case strings.Contains(n, "style") || strings.Contains(n, "css"):
		return "styling"
	case strings.Contains(n, "redux") || strings.Contains(n, "store"):
		return "state"
	default:
		return "general"
	}
}

var seedSnippets = []snippet.Snippet{
	{
		Name:   "yapi",
		Prefix: "yapi",
		Body: []string{
			"const ${1:fetchData} = async () => {",
			"\ttry {",
			"\t\tconst response = await fetch('${2:https://api.example.com/endpoint}');",
			"\t\tconst data = await response.json();",
			"\t\treturn data;",
			"\t} catch (error) {",
			"\t\tconsole.error('API Error:', error);",
			"\t\tthrow error;",
			"\t}",
			"};",
		},
		Description: "Create an async API call function",
		Scope:       []string{"javascript", "typescript", "javascriptreact", "typescriptreact"},
	},
	{
		Name:   "yerr",
		Prefix: "yerr",
		Body: []string{
			"class ErrorBoundary extends React.Component<{children: React.ReactNode}, {hasError: boolean}> {",
			"\tstatic getDerivedStateFromError(error) {",
			"\t\treturn { hasError: true };",
			"\t}",
			"\tcomponentDidCatch(error, errorInfo) {",
			"\t\tconsole.error('Error caught by boundary:', error, errorInfo);",
			"\t}",
			"\trender() {",
			"\t\treturn this.state.hasError ? <h1>Something went wrong.</h1> : this.props.children;",
			"\t}",
			"}",
		},
		Description: "Create a React Error Boundary component",
		Scope:       []string{"javascriptreact", "typescriptreact"},
	},
	{
		Name:   "yfetch",
		Prefix: "yfetch",
		Body: []string{
			"const use${1:FetchData} = (url: string) => {",
			"\tconst [data, setData] = useState<${2:any}>(null);",
			"\tconst [loading, setLoading] = useState(true);",
			"\tconst [error, setError] = useState<Error | null>(null);",
			"\tuseEffect(() => { /* fetch into state */ }, [url]);",
			"\treturn { data, loading, error };",
			"};",
		},
		Description: "Create a custom hook for data fetching",
		Scope:       []string{"typescript", "typescriptreact"},
	},
	{
		Name:   "yslice",
		Prefix: "yslice",
		Body: []string{
			"export const ${1:sliceName}Slice = createSlice({",
			"\tname: '${1:sliceName}',",
			"\tinitialState,",
			"\treducers: {},",
			"});",
		},
		Description: "Create a Redux Toolkit slice",
		Scope:       []string{"typescript", "typescriptreact"},
	},
	{
		Name:   "yroute",
		Prefix: "yroute",
		Body: []string{
			"router.${1|get,post,put,delete,patch|}('/${2:path}', async (req, res) => {",
			"\ttry {",
			"\t\tres.status(200).json({ success: true, data: ${3:result} });",
			"\t} catch (error) {",
			"\t\tres.status(500).json({ success: false, error: error.message });",
			"\t}",
			"});",
		},
		Description: "Create an Express route handler",
		Scope:       []string{"javascript", "typescript"},
	},
	{
		Name:   "ytest",
		Prefix: "ytest",
		Body: []string{
			"describe('${1:Component/Function}', () => {",
			"\tit('should ${2:do something}', () => {",
			"\t\texpect(${3:result}).toBe(${4:expected});",
			"\t});",
			"});",
		},
		Description: "Create a test suite with Jest",
		Scope:       []string{"javascript", "typescript", "javascriptreact", "typescriptreact"},
	},
	{
		Name:   "ystyled",
		Prefix: "ystyled",
		Body: []string{
			"export const ${1:StyledComponent} = styled.${2|div,button,span|}`",
			"\tdisplay: ${3:flex};",
			"`;",
		},
		Description: "Create a styled component",
		Scope:       []string{"javascript", "typescript", "javascriptreact", "typescriptreact"},
	},
	{
		Name:   "ygql",
		Prefix: "ygql",
		Body: []string{
			"const ${1:GET_DATA} = gql`",
			"\tquery ${2:GetData} { ${3:data} { id name } }",
			"`;",
		},
		Description: "Create a GraphQL query",
		Scope:       []string{"javascript", "typescript", "javascriptreact", "typescriptreact"},
	},
	{
		Name:   "yasync",
		Prefix: "yasync",
		Body: []string{
			"const ${1:asyncHandler} = async (${2:params}) => {",
			"\ttry {",
			"\t\tconst result = await ${3:someAsyncFunction}();",
			"\t\treturn { success: true, data: result };",
			"\t} catch (err) {",
			"\t\treturn { success: false, error: err.message };",
			"\t}",
			"};",
		},
		Description: "Create an async handler with error handling",
		Scope:       []string{"javascript", "typescript"},
	},
	{
		Name:   "yform",
		Prefix: "yform",
		Body: []string{
			"const handle${1:Submit} = (event: React.FormEvent<HTMLFormElement>) => {",
			"\tevent.preventDefault();",
			"\tconst formData = new FormData(event.currentTarget);",
			"};",
		},
		Description: "Create a form submit handler",
		Scope:       []string{"typescript", "typescriptreact"},
	},
}
