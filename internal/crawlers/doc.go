// Package crawlers 提供电商站点商品URL的并发发现功能
//
// # 概述
//
// crawlers包实现了多域名并发的商品链接发现引擎,支持动态(go-rod无头浏览器)
// 和静态(Colly纯HTTP)两种渲染模式。核心特性包括: 按域名轮询的URL边界队列、
// 归一化去重、无限滚动触发懒加载、重资源请求拦截、指数退避重试、爬取预算控制。
//
// # 核心组件
//
// ## Frontier (URL边界队列)
//
// 并发安全的待爬URL队列,按域名分FIFO子队列,跨域名轮询出队,
// 避免大站点饿死其他站点。归一化URL的新颖性检查和入队原子完成,
// 同一URL至多入队一次。
//
//	frontier := NewFrontier(trackingParams)
//	frontier.Enqueue("https://shop.example.com/", "example.com", 0)
//	entry, ok := frontier.Dequeue(ctx)
//	// 处理完成且发现的链接全部入队后:
//	frontier.TaskDone()
//
// ## LinkFilter (链接分类器)
//
// 把页面提取的绝对链接分为商品页/可导航页/丢弃三类。
// 分类是(归一化URL, 来源域名, 配置)的纯函数,不携带已访问状态。
//
//	filter := NewLinkFilter(productPatterns, excludedPatterns, trackingParams)
//	class := filter.Classify("https://shop.example.com/p/12345", "example.com")
//
// ## Scheduler (调度器)
//
// 固定大小的worker池,从Frontier取URL,经预算/robots/限速检查后
// 交给PageRenderer渲染,发现的链接分类后回灌队列或写入结果。
//
//	scheduler := NewScheduler(frontier, filter, retry, budget, renderer, sink, robots, config, workers)
//	stats := scheduler.Run(ctx)
//
// ## DynamicDriver / StaticDriver (页面驱动)
//
// PageRenderer接口的两个实现:
//   - DynamicDriver: go-rod无头浏览器,拦截图片/样式/媒体/字体请求,
//     模拟无限滚动直到页面高度稳定,再收集全部<a href>链接
//   - StaticDriver: Colly纯HTTP抓取,golang.org/x/net/html解析链接,
//     不执行JavaScript,适用于服务端渲染站点
//
// ## RetryController (重试控制器)
//
// 瞬时失败(导航超时/渲染崩溃)按指数退避+抖动重试,永久失败
// (域名无法解析/协议不支持)立即放弃。单URL的失败不终止整体运行。
//
//	retry := NewRetryController(3, 2*time.Second, 30*time.Second)
//	result := retry.Do(ctx, url, renderFunc)
//
// ## Budget (爬取预算)
//
// 每域名页数、全局页数、全局时长三种上限。TryVisit的检查与计数
// 在同一把锁下完成,并发worker不会超额访问。
//
// ## PagePool (标签页池)
//
// 管理浏览器标签页生命周期,按ResourceMonitor的资源限制按需创建,
// 归还时清理storage/cookie,清理反复失败的标签页被销毁。
//
// ## ResourceMonitor (资源监控器)
//
// 实时监控系统可用内存和CPU负载,推导初始worker并发数,
// 资源紧张时阻止创建新标签页。
//
//	monitor := NewResourceMonitor(config)
//	monitor.StartMonitoring(1 * time.Second)
//	defer monitor.StopMonitoring()
//	workers := monitor.InitialWorkers(true, 8)
//
// # 并发安全
//
// 所有核心组件都是并发安全的:
//   - Frontier: sync.Mutex + 唤醒channel
//   - Budget / Scheduler统计: sync.Mutex
//   - PagePool: channel + sync.Mutex
//   - ResourceMonitor: sync.RWMutex
//
// # 终止条件
//
// 运行在以下任一条件满足时结束:
//   - Frontier耗尽: 所有域名队列为空且无in-flight条目
//   - 全局预算触顶: 总页数或运行时长达到上限
//   - 外部取消: context取消(如SIGINT信号)
package crawlers
