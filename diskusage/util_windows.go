//go:build windows

package diskusage

import (
	"io/fs"
	"syscall"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/windows"
)

const (
	invalidFileSize     = 0xFFFFFFFF
	fileReadAttributes  = 0x80
	fileFileCompression = 0x00000010
)

var (
	modkernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetCompressedFileSizeW = modkernel32.NewProc("GetCompressedFileSizeW")
	procGetDiskFreeSpaceW      = modkernel32.NewProc("GetDiskFreeSpaceW")

	coarseSizeOnDisk sizeFunc = allocationSize
)

// preciseSizeOnDisk asks NTFS for the compressed (allocated) size, which
// reflects both LZNT1 and WOF compression.
func preciseSizeOnDisk(path string) (int64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	var high uint32
	low, _, callErr := procGetCompressedFileSizeW.Call(uintptr(unsafe.Pointer(p)), uintptr(unsafe.Pointer(&high)))
	if uint32(low) == invalidFileSize && callErr != windows.ERROR_SUCCESS {
		return 0, errors.Wrapf(callErr, "GetCompressedFileSizeW %s", path)
	}
	return int64(high)<<32 | int64(uint32(low)), nil
}

type fileStandardInfo struct {
	AllocationSize int64
	EndOfFile      int64
	NumberOfLinks  uint32
	DeletePending  bool
	Directory      bool
}

// allocationSize reads FILE_STANDARD_INFO.AllocationSize from an open handle.
func allocationSize(path string) (int64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	h, err := windows.CreateFile(p, fileReadAttributes,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer windows.CloseHandle(h)

	var info fileStandardInfo
	if err := windows.GetFileInformationByHandleEx(h, windows.FileStandardInfo,
		(*byte)(unsafe.Pointer(&info)), uint32(unsafe.Sizeof(info))); err != nil {
		return 0, errors.Wrapf(err, "query standard info %s", path)
	}
	return info.AllocationSize, nil
}

func volumeRoot(path string) (string, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, windows.MAX_PATH+1)
	if err := windows.GetVolumePathName(p, &buf[0], uint32(len(buf))); err != nil {
		return "", errors.Wrapf(err, "volume path for %s", path)
	}
	return windows.UTF16ToString(buf), nil
}

func clusterSize(path string) (int64, error) {
	root, err := volumeRoot(path)
	if err != nil {
		return 0, err
	}
	p, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return 0, err
	}
	var sectorsPerCluster, bytesPerSector, freeClusters, totalClusters uint32
	ok, _, callErr := procGetDiskFreeSpaceW.Call(
		uintptr(unsafe.Pointer(p)),
		uintptr(unsafe.Pointer(&sectorsPerCluster)),
		uintptr(unsafe.Pointer(&bytesPerSector)),
		uintptr(unsafe.Pointer(&freeClusters)),
		uintptr(unsafe.Pointer(&totalClusters)),
	)
	if ok == 0 {
		return 0, errors.Wrapf(callErr, "GetDiskFreeSpaceW %s", root)
	}
	return int64(sectorsPerCluster) * int64(bytesPerSector), nil
}

func hasCompressedAttribute(info fs.FileInfo) bool {
	if info == nil {
		return false
	}
	d, ok := info.Sys().(*syscall.Win32FileAttributeData)
	return ok && d.FileAttributes&windows.FILE_ATTRIBUTE_COMPRESSED != 0
}

// Hard links are not deduplicated on Windows; the directory walk only sees
// attribute data, not file indexes.
func fileKey(fs.FileInfo) (DevIno, bool) {
	return DevIno{}, false
}

func probeFileSystem(path string) (root, fsName string, supportsCompression bool, err error) {
	root, err = volumeRoot(path)
	if err != nil {
		return "", "", false, err
	}
	p, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return "", "", false, err
	}
	var flags, serial, maxComponent uint32
	name := make([]uint16, windows.MAX_PATH+1)
	if err := windows.GetVolumeInformation(p, nil, 0, &serial, &maxComponent, &flags, &name[0], uint32(len(name))); err != nil {
		return root, "", false, errors.Wrapf(err, "GetVolumeInformation %s", root)
	}
	return root, windows.UTF16ToString(name), flags&fileFileCompression != 0, nil
}
