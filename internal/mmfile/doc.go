// Package mmfile maps firmware files for reading and blob files for writing.
//
// On unix systems the mappings are real shared mmaps created with
// golang.org/x/sys/unix. Elsewhere Map reads the whole file and Create keeps
// the region on the heap, writing it out on Sync.
package mmfile
