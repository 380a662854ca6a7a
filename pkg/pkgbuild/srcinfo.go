package pkgbuild

import (
	"fmt"

	srcinfo "github.com/Morganamilo/go-srcinfo"
)

// SrcinfoFile is the makepkg --printsrcinfo output some repos commit next to
// the PKGBUILD. When present it is authoritative.
const SrcinfoFile = ".SRCINFO"

func parseSrcinfo(data []byte) (*pkgbuild, error) {
	si, err := srcinfo.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SrcinfoFile, err)
	}

	p := newPkgbuild()

	set := func(key, value string) {
		if value != "" {
			p.scalars[key] = value
		}
	}
	set("pkgbase", si.Pkgbase)
	set("pkgver", si.Pkgver)
	set("pkgrel", si.Pkgrel)
	set("epoch", si.Epoch)
	set("pkgdesc", si.Pkgdesc)
	set("url", si.URL)

	p.arrays["pkgname"] = pkgnames(si.Packages)
	p.arrays["arch"] = si.Arch
	p.arrays["license"] = si.License
	p.arrays["groups"] = si.Groups
	p.arrays["depends"] = values(si.Depends)
	p.arrays["optdepends"] = values(si.OptDepends)
	p.arrays["makedepends"] = values(si.MakeDepends)
	p.arrays["checkdepends"] = values(si.CheckDepends)
	p.arrays["provides"] = values(si.Provides)
	p.arrays["conflicts"] = values(si.Conflicts)
	p.arrays["replaces"] = values(si.Replaces)

	return p, nil
}

// pkgnames lists the packages of a split base in .SRCINFO order.
func pkgnames(pkgs []srcinfo.Package) []string {
	if len(pkgs) == 0 {
		return nil
	}
	names := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		names = append(names, pkg.Pkgname)
	}
	return names
}

// values flattens arch-qualified entries (depends_x86_64 and friends) into
// one list, arch-independent entries first as .SRCINFO lists them.
func values(in []srcinfo.ArchString) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, s.Value)
	}
	return out
}
