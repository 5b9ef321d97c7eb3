package packaging

import (
	"fmt"
	"strings"
)

// Names of the files the pipeline stages at the root of the working directory.
const (
	InstallScriptName = "install.bash"
	ManifestName      = "requirements.txt"
	LibDirName        = "lib"
	DistDirName       = ".dist"
)

// InstallScript renders the bash script run inside the build container.
// The pip step is emitted only when a manifest was staged, and the library
// step only when a library tree was staged.
func InstallScript(runtime string, withRequirements, withLib bool) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("mkdir -p %s", DistDirName)
	line("cp -R * %s", DistDirName)
	line("rm -f %s/%s %s/%s", DistDirName, InstallScriptName, DistDirName, ManifestName)
	if withRequirements {
		line("pip install --target ./%s -r %s --no-deps --disable-pip-version-check", DistDirName, ManifestName)
	}
	if withLib {
		sitePackages := fmt.Sprintf("%s/%s/%s/site-packages", DistDirName, LibDirName, runtime)
		line("mkdir -p %s", sitePackages)
		line("cp -r %s/* %s/", LibDirName, sitePackages)
	}
	line("find %s -type f -name '*.pyc' -delete", DistDirName)
	line("exit 0")
	return b.String()
}
