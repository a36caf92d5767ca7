package fs

import "strings"

// Directory entry layout (32 bytes), the classic FAT 8.3 format (sec. 6).
const (
	dirEntrySize = 32

	direntName         = 0 // 8 bytes
	direntExt          = 8 // 3 bytes
	direntAttr         = 11
	direntFirstCluster = 26 // low 16 bits; FAT16 never uses the high half
	direntFileSize     = 28 // 4 bytes
)

// Attribute bits this module cares about (sec. 6). ATTR_LONG_NAME marks a
// VFAT long-filename continuation entry, the "invalid-file-type sentinel"
// that must be skipped since this core has no long-filename support.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	AttrLongName  = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID

	nameFree    = 0x00
	nameDeleted = 0xE5
)

// DirEntry is a decoded 8.3 directory entry.
type DirEntry struct {
	Name         string // 8.3, upper-cased, trimmed, "NAME.EXT" or "NAME"
	Attr         uint8
	FirstCluster uint16
	FileSize     uint32
}

func (d DirEntry) IsDir() bool { return d.Attr&AttrDirectory != 0 }

// decodeDirent parses one 32-byte slot. ok is false for free, deleted, or
// long-name-continuation slots, which the caller must skip over (sec. 4.4).
func decodeDirent(b []byte) (DirEntry, bool) {
	if b[0] == nameFree || b[0] == nameDeleted {
		return DirEntry{}, false
	}
	attr := uint8(readn(b, 1, direntAttr))
	if attr&AttrLongName == AttrLongName {
		return DirEntry{}, false
	}
	name := strings.TrimRight(string(b[direntName:direntName+8]), " ")
	ext := strings.TrimRight(string(b[direntExt:direntExt+3]), " ")
	full := name
	if ext != "" {
		full = name + "." + ext
	}
	return DirEntry{
		Name:         full,
		Attr:         attr,
		FirstCluster: uint16(readn(b, 2, direntFirstCluster)),
		FileSize:     uint32(readn(b, 4, direntFileSize)),
	}, true
}

// splitPath upper-cases and splits a flat filename into its 8.3 components
// for comparison against decoded entries. This core has no subdirectories,
// so a path containing "/" is rejected outright (sec. 1 Non-goals).
func splitPath(path string) (name, ext string, ok bool) {
	if strings.ContainsRune(path, '/') {
		return "", "", false
	}
	path = strings.ToUpper(path)
	base, dot := path, ""
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		base, dot = path[:i], path[i+1:]
	}
	if len(base) == 0 || len(base) > 8 || len(dot) > 3 {
		return "", "", false
	}
	return base, dot, true
}

// match reports whether the 8.3-decoded entry name matches the path, after
// both sides are normalized by splitPath.
func (d DirEntry) match(path string) bool {
	wantBase, wantExt, ok := splitPath(path)
	if !ok {
		return false
	}
	gotBase, gotExt, ok := splitPath(d.Name)
	if !ok {
		return false
	}
	return wantBase == gotBase && wantExt == gotExt
}
