// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	ContainerEngineNotFoundId Id = iota + 1
	InputMissingId
	ImageMissingId
	BuildFailedId
	PullFailedId
	MergeIncompleteId
	MatrixMismatchId
	RegistryAuthFailedId
	ConfigLoadFailedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	// Issue is a Markdown help card for a well known failure class.
	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
	}
)

var (
	render = glamour.Render

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# No container engine found!

dtox drives Docker or Podman through their command line clients and neither
answered on this host.

## Things you can try:
- Check that the daemon is running:
~~~
$ docker version
~~~
- Select the engine explicitly:
~~~
$ dtox --engine podman run py311
~~~`,
		docLinks: []HttpLink{"https://docs.docker.com/engine/install/"},
	}

	inputMissingIssue = &Issue{
		id: InputMissingId,
		mdMsg: `
# An image input file could not be read!

Image tags are derived from the contents of the files listed under
` + "`image.base.inputs`" + ` and ` + "`image.derived.inputs`" + `. Every listed file
must exist and be readable.

## Things you can try:
- Run from the repository root, or pass ` + "`--config`" + `
- Print the resolved identities:
~~~
$ dtox identity --layer derived
~~~`,
	}

	imageMissingIssue = &Issue{
		id: ImageMissingId,
		mdMsg: `
# The base image is not available locally!

` + "`BASE_MODE=none`" + ` forbids both building and pulling, so the image must already
exist in the local engine store.

## Things you can try:
- Build it locally:
~~~
$ BASE_MODE=build dtox ensure
~~~
- Or pull the published one:
~~~
$ BASE_MODE=pull dtox ensure
~~~`,
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Image build failed!

The container engine rejected the build. The engine output above names the
failing Dockerfile step.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to stream the full build log
- Confirm the build context contains every file the Dockerfile copies`,
	}

	pullFailedIssue = &Issue{
		id: PullFailedId,
		mdMsg: `
# Image pull failed!

Pull mode never falls back to a local build.

## Things you can try:
- Check your registry login:
~~~
$ docker login ghcr.io
~~~
- Build the image locally instead with ` + "`BASE_MODE=build`",
	}

	mergeIncompleteIssue = &Issue{
		id: MergeIncompleteId,
		mdMsg: `
# The cache merge is missing shards!

Every environment in the test matrix must produce a cache shard before the
unified cache image can be published. A partial cache image is never pushed.

## Things you can try:
- Rebuild the missing shards:
~~~
$ dtox cache --mode build --env <name>
~~~
- Check that the shard list matches the matrix:
~~~
$ dtox matrix --check
~~~`,
	}

	matrixMismatchIssue = &Issue{
		id: MatrixMismatchId,
		mdMsg: `
# The cache shard list does not match the test matrix!

Each test environment in the CI workflow matrix must map to exactly one cache
shard, and each shard must name a matrix environment.

## Things you can try:
- Remove ` + "`shards.envs`" + ` from dtox.cue to derive the list from the matrix
- Or update it to match:
~~~
$ dtox matrix
~~~`,
	}

	registryAuthFailedIssue = &Issue{
		id: RegistryAuthFailedId,
		mdMsg: `
# Registry authentication failed!

Pushing the unified cache image requires write access to the target
repository.

## Things you can try:
- Export ` + "`DTOX_REGISTRY_USERNAME`" + ` and ` + "`DTOX_REGISTRY_PASSWORD`" + `
- Or log in with the engine so the docker keychain has credentials`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load dtox.cue!

The configuration file did not validate against the schema.

## Things you can try:
- Print the effective configuration with defaults applied:
~~~
$ dtox config show
~~~
- Check the field path in the error above`,
	}

	issues = map[Id]*Issue{
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		inputMissingIssue.Id():            inputMissingIssue,
		imageMissingIssue.Id():            imageMissingIssue,
		buildFailedIssue.Id():             buildFailedIssue,
		pullFailedIssue.Id():              pullFailedIssue,
		mergeIncompleteIssue.Id():         mergeIncompleteIssue,
		matrixMismatchIssue.Id():          matrixMismatchIssue,
		registryAuthFailedIssue.Id():      registryAuthFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the help card as styled terminal output.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

// Values returns every catalogued issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
