//go:build windows

package filesystem

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// attributesOf reads the native FILE_ATTRIBUTE_READONLY bit, the
// direct Windows equivalent of the original's FileInfo attribute
// checks in EACopyShared.cpp's getFileInfo.
func attributesOf(info os.FileInfo) uint32 {
	var attrs uint32
	if sys, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		if sys.FileAttributes&uint32(windows.FILE_ATTRIBUTE_READONLY) != 0 {
			attrs |= attrReadOnly
		}
	}
	return attrs
}

// setWritablePlatform flips the native read-only attribute bit
// directly, no xattr fallback needed on this platform.
func setWritablePlatform(path string, writable bool) error {
	attrs, err := windows.GetFileAttributes(windows.StringToUTF16Ptr(path))
	if err != nil {
		return classifyOpenErr(path, err)
	}
	if writable {
		attrs &^= windows.FILE_ATTRIBUTE_READONLY
	} else {
		attrs |= windows.FILE_ATTRIBUTE_READONLY
	}
	if err := windows.SetFileAttributes(windows.StringToUTF16Ptr(path), attrs); err != nil {
		return classifyOpenErr(path, err)
	}
	return nil
}

// linkIdentity uses the file index (volume serial + file index),
// Windows' nearest equivalent of a unix (dev, ino) pair, the same
// comparison backend/local/linkinfo_windows.go performs through
// GetFileInformationByHandle.
func linkIdentity(path string) (dev, ino uint64, err error) {
	h, err := windows.CreateFile(windows.StringToUTF16Ptr(path), windows.GENERIC_READ, windows.FILE_SHARE_READ, nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return 0, 0, classifyOpenErr(path, err)
	}
	defer windows.CloseHandle(h)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return 0, 0, classifyOpenErr(path, err)
	}
	dev = uint64(info.VolumeSerialNumber)
	ino = uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow)
	return dev, ino, nil
}

func isSharingViolation(err error) bool {
	return err == windows.ERROR_SHARING_VIOLATION
}
