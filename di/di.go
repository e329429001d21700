// Package di wires the cache engine with samber/do.
package di

import "github.com/samber/do/v2"

// Injector 类型别名
type Injector = do.Injector

// RootScope 类型别名
type RootScope = do.RootScope

// New 创建新的根注入器
var New = do.New

// 泛型函数不能导出为 var，需要通过包名调用：
//   injector := di.New()
//   di.RegisterProviders(injector, di.ConfigOptions{ConfigPath: "./configs"})
//   e := do.MustInvoke[*engine.Engine](injector)
