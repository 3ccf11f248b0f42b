package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<StoragePath>/<Destination>/<key>
//
// key 必须是单个文件名（由 resource.Identifier.FileName 生成），不允许包含路径分隔符。
type Store interface {
	// Exists 返回 key 对应文件的 Handle；文件不存在或是目录时 ok 为 false。
	Exists(ctx context.Context, key string, dest Destination) (Handle, bool)

	// Timestamp 返回文件最后写入时间；读取失败时 ok 为 false。
	Timestamp(ctx context.Context, h Handle) (time.Time, bool)

	// CreateOrReplace 以 temp file + rename 的方式原子写入 data，覆盖已有文件。
	CreateOrReplace(ctx context.Context, data []byte, key string, dest Destination) (Handle, error)

	// Read 读取文件全部内容。
	Read(ctx context.Context, h Handle) ([]byte, error)

	// Delete 删除单个文件。
	Delete(ctx context.Context, h Handle) error

	// Copy 将 from 的内容原子复制到 to。
	Copy(ctx context.Context, from, to Handle) error

	// Locate 计算 key 在 dest 下的 Handle，不访问文件系统。
	Locate(key string, dest Destination) (Handle, error)

	// Purge 尽力清空 dest 目录，单个文件删除失败只记录在报告中，不会中断清理。
	Purge(ctx context.Context, dest Destination) PurgeReport
}

// Destination 是 StoragePath 下的一级目录名。
type Destination string

const (
	DestinationDocuments Destination = "documents"
	DestinationCaches    Destination = "caches"
)

// Handle 指向一个本地文件，只能由 Store 产生。
type Handle struct {
	path string
}

// Path 返回文件的绝对路径。
func (h Handle) Path() string {
	return h.path
}

// IsZero 表示 Handle 未指向任何文件。
func (h Handle) IsZero() bool {
	return h.path == ""
}

func (h Handle) String() string {
	return h.path
}

// PurgeReport 汇总一次 Purge 的结果，供调用方打日志。
type PurgeReport struct {
	Destination Destination
	Removed     int
	Failures    []*StorageError
}

// Op 枚举存储层失败发生的操作。
type Op int

const (
	OpCreateOrReplace Op = iota + 1
	OpDelete
	OpCopy
	OpReadMissingSource
	OpReadSource
)

func (o Op) String() string {
	switch o {
	case OpCreateOrReplace:
		return "create_or_replace"
	case OpDelete:
		return "delete"
	case OpCopy:
		return "copy"
	case OpReadMissingSource:
		return "read_missing_source"
	case OpReadSource:
		return "read_source"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// StorageError 描述一次存储失败；Source 仅在 Copy 时有值。
type StorageError struct {
	Op     Op
	Path   string
	Source string
	Err    error
}

func (e *StorageError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("storage %s %s -> %s: %v", e.Op, e.Source, e.Path, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrInvalidKey 表示 key 不是合法的单个文件名。
var ErrInvalidKey = errors.New("invalid cache key")
