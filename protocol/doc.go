// Package protocol 牌桌的线路协议
//
// 每帧为 4 字节大端长度加 UTF-8 负载，负载不超过 MaxPayload。
// 客户端指令：JOIN <name>、ACTION HIT|STAND、QUIT、CHAT <text>。
// 服务端消息每条一帧，只有 BROADCAST 是两帧：先是标签帧，再是文本帧。
//
// WELCOME 与 ERROR 是单帧（"WELCOME <name> <id>"、"ERROR <reason>"）。
// 把它们当作标签帧加文本帧两帧读取的客户端会错位，需要改为按单帧解析。
package protocol
